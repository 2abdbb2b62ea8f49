package httpapp

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/alphabot-ai/gamerev/internal/apierror"
	"github.com/alphabot-ai/gamerev/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// routes builds the router for the configured variant. Both variants share
// the revision subresources so Location headers always resolve.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	r.HandleFunc("/", s.handleCreateGame).Methods(http.MethodPost)
	if s.cfg.API == config.APIRest {
		r.HandleFunc("/{gameId}/", s.handleTouchGame).Methods(http.MethodGet, http.MethodPost)
		r.HandleFunc("/{gameId}/", s.handleRestoreGame).Methods(http.MethodPut)
	} else {
		r.HandleFunc("/", s.handleListGames).Methods(http.MethodGet)
		r.HandleFunc("/{gameId}/", s.handleGetGame).Methods(http.MethodGet)
	}
	r.HandleFunc("/{gameId}/revs/", s.handleAppendRevision).Methods(http.MethodPost)
	r.HandleFunc("/{gameId}/revs/", s.handleListRevisions).Methods(http.MethodGet)
	r.HandleFunc("/{gameId}/revs/{rev}/", s.handleGetRevision).Methods(http.MethodGet)
	return r
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	fail(r, apierror.New(apierror.KindNotFound, "Not found", "No resource at this path."))
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	fail(r, apierror.New(apierror.KindMethodNotAllowed, "Method not allowed",
		fmt.Sprintf("%s is not supported on this resource.", r.Method)))
}

// RevisionPath is the canonical location of revision rev of game.
func RevisionPath(game uuid.UUID, rev int) string {
	return fmt.Sprintf("/%s/revs/%d/", game, rev)
}

func gameIDVar(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["gameId"])
	if err != nil {
		fail(r, apierror.New(apierror.KindNotFound, "Game not found", "Game ids are UUIDs."))
		return uuid.Nil, false
	}
	return id, true
}

func revVar(r *http.Request) (int, bool) {
	raw := mux.Vars(r)["rev"]
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || strconv.Itoa(n) != raw {
		fail(r, apierror.New(apierror.KindNotFound, "Revision not found", "Revision indexes are non-negative integers."))
		return 0, false
	}
	return n, true
}
