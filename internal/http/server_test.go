package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alphabot-ai/gamerev/internal/apierror"
	"github.com/alphabot-ai/gamerev/internal/auth"
	"github.com/alphabot-ai/gamerev/internal/client"
	"github.com/alphabot-ai/gamerev/internal/config"
	"github.com/alphabot-ai/gamerev/internal/ident"
	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/alphabot-ai/gamerev/internal/rate"
	"github.com/alphabot-ai/gamerev/internal/revision"
	"github.com/alphabot-ai/gamerev/internal/shadow"
	"github.com/alphabot-ai/gamerev/internal/store"
	"github.com/alphabot-ai/gamerev/internal/store/memory"
	"github.com/google/uuid"
)

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	return true, 0
}

type testEnv struct {
	server *httptest.Server
	auth   *auth.Service
}

func newTestEnv(t *testing.T, cfg config.Config, limiter rate.Limiter) *testEnv {
	t.Helper()
	if cfg.API == "" {
		cfg.API = config.APIRestlike
	}
	if cfg.Identity == "" {
		cfg.Identity = config.DefaultIdentity(cfg.API)
	}
	if limiter == nil {
		limiter = allowAllLimiter{}
	}

	st := memory.New()
	sealer, err := shadow.NewSealer([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	authSvc := auth.NewService(st)

	var strategy ident.Strategy = ident.AnonymousStrategy{}
	if cfg.Identity == config.IdentityUUID {
		strategy = ident.UUIDStrategy{}
	}
	validator, err := ident.NewValidator(strategy, authSvc, cfg.EnforcePairing)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	srv, err := NewServer(revision.NewService(st, sealer), validator, limiter, cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, auth: authSvc}
}

func (e *testEnv) anonymous(t *testing.T) *client.Client {
	t.Helper()
	id, err := e.auth.IssueAnonymous(context.Background())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c := client.New(e.server.URL)
	c.UseAnonymous(id.UserID, id.Token)
	return c
}

func (e *testEnv) withUserID(t *testing.T) *client.Client {
	t.Helper()
	c := client.New(e.server.URL)
	c.UseUserID(uuid.New())
	return c
}

func setTurn(base int) revision.Transformation {
	return revision.Transformation{
		Rev: &base,
		Ops: []revision.Op{{Op: revision.OpSet, Path: "turn", Value: json.RawMessage(`1`)}},
	}
}

// raw sends a request bypassing the client so headers and bodies can be
// malformed on purpose.
func raw(t *testing.T, method, url, contentType, body string, cookies ...*http.Cookie) (*http.Response, apierror.Body) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var problem apierror.Body
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &problem)
	return resp, problem
}

func TestRestlikeGameLifecycle(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	c := env.anonymous(t)
	ctx := context.Background()

	created, err := c.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Rev != 0 || created.Location != RevisionPath(created.GameID, 0) {
		t.Fatalf("unexpected create response %+v", created)
	}

	revs, err := c.ListRevisions(ctx, created.GameID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revs) != 1 || revs[0].Index != 0 || string(revs[0].State) != `{}` {
		t.Fatalf("unexpected revisions %+v", revs)
	}

	rev, err := c.AppendRevision(ctx, created.GameID, setTurn(0))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if rev.Index != 1 || rev.Location != RevisionPath(created.GameID, 1) || rev.GameID != created.GameID {
		t.Fatalf("unexpected revision %+v", rev)
	}

	if _, err := c.AppendRevision(ctx, created.GameID, setTurn(0)); !errors.Is(err, client.ErrConflict) {
		t.Fatalf("expected conflict on resubmit, got %v", err)
	}

	got, err := c.GetRevision(ctx, created.GameID, 1)
	if err != nil {
		t.Fatalf("get revision: %v", err)
	}
	if string(got.State) != `{"turn":1}` {
		t.Fatalf("unexpected state %s", got.State)
	}

	summary, err := c.GetGame(ctx, created.GameID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if summary.Rev != 1 || summary.Revisions != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	games, err := c.ListGames(ctx)
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	if len(games) != 1 || games[0].ID != created.GameID {
		t.Fatalf("unexpected games %+v", games)
	}
}

func TestRestlikeOwnershipAndNotFound(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	owner, stranger := env.anonymous(t), env.anonymous(t)
	ctx := context.Background()

	created, err := owner.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, base := range []int{0, 3} {
		if _, err := stranger.AppendRevision(ctx, created.GameID, setTurn(base)); !errors.Is(err, client.ErrForbidden) {
			t.Fatalf("base %d: expected forbidden, got %v", base, err)
		}
	}
	if _, err := stranger.GetGame(ctx, created.GameID); err != nil {
		t.Fatalf("nested game reads are public: %v", err)
	}

	if _, err := owner.GetGame(ctx, uuid.New()); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := owner.GetRevision(ctx, created.GameID, 9); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected not found revision, got %v", err)
	}

	cookies := owner.Cookies
	resp, problem := raw(t, http.MethodGet, env.server.URL+"/not-a-uuid/", "", "", cookies...)
	if resp.StatusCode != http.StatusNotFound || problem.Kind != apierror.KindNotFound {
		t.Fatalf("expected 404 for malformed game id, got %d %+v", resp.StatusCode, problem)
	}
	resp, problem = raw(t, http.MethodGet, env.server.URL+"/"+created.GameID.String()+"/revs/01/", "", "", cookies...)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for non-canonical index, got %d", resp.StatusCode)
	}
	resp, problem = raw(t, http.MethodDelete, env.server.URL+"/"+created.GameID.String()+"/", "", "", cookies...)
	if resp.StatusCode != http.StatusMethodNotAllowed || problem.Kind != apierror.KindMethodNotAllowed {
		t.Fatalf("expected 405, got %d %+v", resp.StatusCode, problem)
	}
}

func TestIdentityCheckedFirst(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	resp, problem := raw(t, http.MethodGet, env.server.URL+"/", "", "")
	if resp.StatusCode != http.StatusBadRequest || problem.Kind != apierror.KindMissingCredential {
		t.Fatalf("expected missing credential, got %d %+v", resp.StatusCode, problem)
	}
	if problem.Href != "/docs/restlike-api/request-headers.htm#cookie-uid" {
		t.Fatalf("unexpected href %q", problem.Href)
	}

	resp, problem = raw(t, http.MethodGet, env.server.URL+"/", "", "",
		&http.Cookie{Name: "uid", Value: "a0"}, &http.Cookie{Name: "token", Value: uuid.NewString()})
	if resp.StatusCode != http.StatusBadRequest || problem.Kind != apierror.KindInvalidCredential {
		t.Fatalf("expected invalid credential, got %d %+v", resp.StatusCode, problem)
	}

	resp, problem = raw(t, http.MethodGet, env.server.URL+"/nowhere/at/all", "", "")
	if problem.Kind != apierror.KindMissingCredential {
		t.Fatalf("identity must be checked before routing, got %d %+v", resp.StatusCode, problem)
	}
}

func TestMalformedJSONOnCreate(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	c := env.anonymous(t)

	resp, problem := raw(t, http.MethodPost, env.server.URL+"/", "application/json", "{not json", c.Cookies...)
	if resp.StatusCode != apierror.StatusMalformedJSON {
		t.Fatalf("expected %d, got %d", apierror.StatusMalformedJSON, resp.StatusCode)
	}
	if problem.Kind != apierror.KindMalformedJSON || problem.Href != "/docs/restlike-api/json/request-body-json.htm" {
		t.Fatalf("unexpected problem %+v", problem)
	}

	resp, _ = raw(t, http.MethodPost, env.server.URL+"/", "text/plain", `{}`, c.Cookies...)
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}
}

func TestInvalidTransformationOverHTTP(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	c := env.anonymous(t)
	created, _ := c.CreateGame(context.Background())
	url := env.server.URL + "/" + created.GameID.String() + "/revs/"

	for _, body := range []string{`{"rev":0,"bogus":1}`, `{"ops":[]}`, `[1,2]`} {
		resp, problem := raw(t, http.MethodPost, url, "application/json", body, c.Cookies...)
		if resp.StatusCode != http.StatusBadRequest || problem.Kind != apierror.KindInvalidDocument {
			t.Fatalf("%s: expected invalid document, got %d %+v", body, resp.StatusCode, problem)
		}
	}
	resp, problem := raw(t, http.MethodPost, url, "application/json", "", c.Cookies...)
	if resp.StatusCode != http.StatusBadRequest || problem.Kind != apierror.KindEmptyBody {
		t.Fatalf("expected empty body, got %d %+v", resp.StatusCode, problem)
	}
}

func TestConcurrentAppendsOverHTTP(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	c := env.anonymous(t)
	ctx := context.Background()
	created, err := c.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AppendRevision(ctx, created.GameID, setTurn(0))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, client.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || conflicts != racers-1 {
		t.Fatalf("expected one winner, got %d ok and %d conflicts", ok, conflicts)
	}
	revs, _ := c.ListRevisions(ctx, created.GameID)
	if len(revs) != 2 || revs[1].Index != 1 {
		t.Fatalf("unexpected chain %+v", revs)
	}
}

func TestRateLimitedCreate(t *testing.T) {
	cfg := config.Config{RateLimits: config.RateLimits{CreatePerMinute: 2, RevisionPerMinute: 100}}
	env := newTestEnv(t, cfg, rate.NewMemory())
	c := env.anonymous(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.CreateGame(ctx); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	resp, problem := raw(t, http.MethodPost, env.server.URL+"/", "application/json", "", c.Cookies...)
	if resp.StatusCode != http.StatusTooManyRequests || !errors.Is(problemErr(problem), apierror.RateLimited) {
		t.Fatalf("expected 429, got %d %+v", resp.StatusCode, problem)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestPairingEnforced(t *testing.T) {
	env := newTestEnv(t, config.Config{EnforcePairing: true}, nil)
	ctx := context.Background()

	if _, err := env.anonymous(t).CreateGame(ctx); err != nil {
		t.Fatalf("issued pair should pass: %v", err)
	}

	forged := client.New(env.server.URL)
	forged.UseAnonymous("a1", uuid.New())
	if _, err := forged.CreateGame(ctx); !errors.Is(err, client.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential for forged token, got %v", err)
	}
}

func TestRestVariant(t *testing.T) {
	env := newTestEnv(t, config.Config{API: config.APIRest}, nil)
	owner, stranger := env.withUserID(t), env.withUserID(t)
	ctx := context.Background()

	created, err := owner.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Location != RevisionPath(created.GameID, 0) {
		t.Fatalf("unexpected location %q", created.Location)
	}

	if _, err := owner.GetGame(ctx, created.GameID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := owner.TouchGame(ctx, created.GameID); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if _, err := stranger.GetGame(ctx, created.GameID); !errors.Is(err, client.ErrForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}

	resp, problem := raw(t, http.MethodGet, env.server.URL+"/", "", "", owner.Cookies...)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("rest API has no game listing, got %d %+v", resp.StatusCode, problem)
	}
	if problem.Href != "/docs/api/errors.htm" {
		t.Fatalf("unexpected href %q", problem.Href)
	}

	anon := client.New(env.server.URL)
	anon.UseAnonymous("a1", uuid.New())
	if _, err := anon.CreateGame(ctx); !errors.Is(err, client.ErrMissingCredential) {
		t.Fatalf("rest API expects user_id, got %v", err)
	}
}

func TestRestRestore(t *testing.T) {
	env := newTestEnv(t, config.Config{API: config.APIRest}, nil)
	owner := env.withUserID(t)
	ctx := context.Background()
	created, _ := owner.CreateGame(ctx)

	rev, err := owner.RestoreGame(ctx, created.GameID, nil)
	if err != nil || rev != nil {
		t.Fatalf("expected 204 without shadow, got %+v, %v", rev, err)
	}

	base := 0
	tr := revision.Transformation{
		Rev:    &base,
		Ops:    []revision.Op{{Op: revision.OpSet, Path: "face_up", Value: json.RawMessage(`[1]`)}},
		Shadow: json.RawMessage(`{"deck":[5,4,3]}`),
	}
	appended, err := owner.AppendRevision(ctx, created.GameID, tr)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(appended.Shadow) == 0 {
		t.Fatalf("owner should receive sealed shadow")
	}

	stale := 0
	if _, err := owner.RestoreGame(ctx, created.GameID, &stale); !errors.Is(err, client.ErrConflict) {
		t.Fatalf("expected conflict for stale restore, got %v", err)
	}
	restored, err := owner.RestoreGame(ctx, created.GameID, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored == nil || restored.Index != 2 || string(restored.State) != `{"deck":[5,4,3]}` {
		t.Fatalf("unexpected restored revision %+v", restored)
	}
	if restored.Location != RevisionPath(created.GameID, 2) {
		t.Fatalf("unexpected location %q", restored.Location)
	}
}

func TestSwaggerOutsidePipeline(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	resp, err := http.Get(env.server.URL + "/openapi.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 without cookies, got %d", resp.StatusCode)
	}
	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["swagger"] != "2.0" {
		t.Fatalf("unexpected doc %v", doc["info"])
	}
}

func TestPairingVerifierFailureIsInternal(t *testing.T) {
	st := memory.New()
	sealer, err := shadow.NewSealer([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	broken := ident.PairingFunc(func(context.Context, model.Identity) error {
		return errors.New("database is locked")
	})
	validator, err := ident.NewValidator(ident.AnonymousStrategy{}, broken, true)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	srv, err := NewServer(revision.NewService(st, sealer), validator, allowAllLimiter{},
		config.Config{API: config.APIRestlike}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c := client.New(ts.URL)
	c.UseAnonymous("a1", uuid.New())
	_, err = c.CreateGame(context.Background())
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError || apiErr.Kind != string(apierror.KindInternal) {
		t.Fatalf("expected 500 INTERNAL, got %v", err)
	}
}

func TestTranslateMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{fmt.Errorf("game x: %w", store.ErrNotFound), apierror.NotFound},
		{fmt.Errorf("append: %w", store.ErrConflict), apierror.Conflict},
		{revision.ErrForbidden, apierror.Forbidden},
		{fmt.Errorf("%w: rev is required", revision.ErrInvalidTransformation), apierror.InvalidDocument},
		{apierror.New(apierror.KindRateLimited, "Slow down", ""), apierror.RateLimited},
	}
	for _, tc := range cases {
		got := translate(tc.err)
		if !errors.Is(got, tc.want) {
			t.Fatalf("translate(%v) = %v, want kind %v", tc.err, got, tc.want)
		}
		if !errors.Is(got, tc.err) {
			t.Fatalf("translate(%v) dropped its cause", tc.err)
		}
	}

	plain := errors.New("disk on fire")
	if got := apierror.As(translate(plain)); got.Kind != apierror.KindInternal {
		t.Fatalf("expected unknown errors to stay internal, got %s", got.Kind)
	}
}
