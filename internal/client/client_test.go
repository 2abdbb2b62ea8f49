package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestClientNew(t *testing.T) {
	c := New("https://example.com/")

	if c.BaseURL != "https://example.com" {
		t.Errorf("expected trailing slash trimmed, got '%s'", c.BaseURL)
	}
	if c.HTTPClient == nil {
		t.Error("expected non-nil HTTP client")
	}
	if len(c.Cookies) != 0 {
		t.Error("expected no identity on a new client")
	}
}

func TestRequestShape(t *testing.T) {
	token := uuid.New()
	var got *http.Request
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Location", "/x/revs/0/")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"game_id":"` + token.String() + `","rev":0}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.UseAnonymous("a3", token)
	created, err := c.CreateGame(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.GameID != token || created.Location != "/x/revs/0/" {
		t.Fatalf("unexpected created %+v", created)
	}
	if got.Method != http.MethodPost || got.URL.Path != "/" {
		t.Fatalf("unexpected request %s %s", got.Method, got.URL.Path)
	}
	if got.Header.Get("Content-Type") != "application/json" || got.Header.Get("Accept") != "application/json" {
		t.Fatalf("unexpected headers %v", got.Header)
	}
	if body != "" {
		t.Fatalf("expected empty body, got %q", body)
	}
	uid, _ := got.Cookie("uid")
	tok, _ := got.Cookie("token")
	if uid == nil || uid.Value != "a3" || tok == nil || tok.Value != token.String() {
		t.Fatalf("identity cookies not sent: %v", got.Cookies())
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"kind":"CONFLICT","title":"Revision conflict","href":"/docs/restlike-api/revisions.htm#conflicts"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.UseUserID(uuid.New())
	_, err := c.GetRevision(context.Background(), uuid.New(), 1)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict || apiErr.Href == "" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("did not expect ErrNotFound")
	}
}

func TestAPIErrorNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ListGames(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != "UNKNOWN" || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRestoreNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rev, err := New(srv.URL).RestoreGame(context.Background(), uuid.New(), nil)
	if err != nil || rev != nil {
		t.Fatalf("expected nil revision and nil error, got %+v, %v", rev, err)
	}
}
