package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alphabot-ai/gamerev/internal/apierror"
	"github.com/alphabot-ai/gamerev/internal/config"
	"github.com/alphabot-ai/gamerev/internal/ident"
	"github.com/alphabot-ai/gamerev/internal/rate"
	"github.com/alphabot-ai/gamerev/internal/revision"
	"github.com/alphabot-ai/gamerev/internal/store"

	_ "github.com/alphabot-ai/gamerev/docs" // swagger docs

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// Documentation roots linked from error bodies, one per API variant.
const (
	DocsRootRest     = "/docs/api/"
	DocsRootRestlike = "/docs/restlike-api/"
)

type Server struct {
	games     *revision.Service
	validator *ident.Validator
	limiter   rate.Limiter
	cfg       config.Config

	docsRoot string
	pipeline Pipeline
	handler  http.Handler
}

func NewServer(games *revision.Service, validator *ident.Validator, limiter rate.Limiter, cfg config.Config, logger *log.Logger) (*Server, error) {
	if games == nil || validator == nil || limiter == nil {
		return nil, errors.New("httpapp: games, validator and limiter are required")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		games:     games,
		validator: validator,
		limiter:   limiter,
		cfg:       cfg,
		docsRoot:  DocsRoot(cfg.API),
	}
	s.pipeline = DefaultPipeline(validator, s.docsRoot, logger)
	s.handler = s.pipeline.Then(s.routes())
	return s, nil
}

// DocsRoot returns the documentation root for an API variant.
func DocsRoot(api string) string {
	if api == config.APIRest {
		return DocsRootRest
	}
	return DocsRootRestlike
}

// DefaultPipeline is the stage order every API request passes through.
func DefaultPipeline(validator *ident.Validator, docsRoot string, logger *log.Logger) Pipeline {
	return Pipeline{
		TraceStage(),
		LogStage(logger),
		IdentityStage(validator, docsRoot),
		RequireJSONStage(docsRoot),
		JSONTranslatorStage(docsRoot),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/swagger/"):
		httpSwagger.WrapHandler.ServeHTTP(w, r)
	case r.URL.Path == "/openapi.json":
		s.serveOpenAPIJSON(w, r)
	default:
		s.handler.ServeHTTP(w, r)
	}
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, s.docsRoot, apierror.New(apierror.KindMethodNotAllowed, "Method not allowed", ""))
		return
	}
	doc, err := swag.ReadDoc()
	if err != nil {
		writeProblem(w, s.docsRoot, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write([]byte(doc))
}

// IdentityStage validates the caller's cookies and stores the identity in
// the request context.
func IdentityStage(v *ident.Validator, docsRoot string) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Validate(r.Context(), ident.FromRequest(r))
			if err != nil {
				writeProblem(w, docsRoot, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// allowRateLimit checks the per-address and per-user buckets for action.
func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) bool {
	if limit <= 0 {
		return true
	}
	keys := []string{fmt.Sprintf("%s:ip:%s", action, clientIP(r))}
	if id, ok := IdentityFrom(r.Context()); ok && id.UserID != "" {
		keys = append(keys, fmt.Sprintf("%s:user:%s", action, id.UserID))
	}
	for _, key := range keys {
		if ok, retry := s.limiter.Allow(key, limit, time.Minute); !ok {
			seconds := int(retry.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			fail(r, apierror.New(apierror.KindRateLimited, "Rate limit exceeded",
				fmt.Sprintf("Retry in %d seconds.", seconds)))
			return false
		}
	}
	return true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// translate maps service and store errors onto the API taxonomy.
func translate(err error) error {
	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, store.ErrNotFound):
		return apierror.Wrap(apierror.KindNotFound, "Not found",
			"No such game or revision.", err)
	case errors.Is(err, store.ErrConflict):
		return apierror.Wrap(apierror.KindConflict, "Revision conflict",
			"The submitted revision is not based on the current tip. Fetch the latest revision and resubmit.", err)
	case errors.Is(err, revision.ErrForbidden):
		return apierror.Wrap(apierror.KindForbidden, "Not the owner",
			"Only the user that created the game may change it.", err)
	case errors.Is(err, revision.ErrInvalidTransformation):
		return apierror.Wrap(apierror.KindInvalidDocument, "Invalid transformation", err.Error(), err)
	default:
		return err
	}
}

// fail records err on the request's exchange for the JSON translator.
func fail(r *http.Request, err error) {
	exchangeFrom(r.Context()).Err = translate(err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeProblem(w http.ResponseWriter, docsRoot string, err error) {
	apiErr := apierror.As(err)
	if apiErr.Kind == apierror.KindInternal {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, apiErr.Status(), apiErr.Body(docsRoot))
}
