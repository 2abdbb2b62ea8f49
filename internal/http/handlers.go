package httpapp

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alphabot-ai/gamerev/internal/apierror"
	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/alphabot-ai/gamerev/internal/revision"
	"github.com/google/uuid"
)

type createdGame struct {
	GameID uuid.UUID `json:"game_id"`
	Rev    int       `json:"rev"`
}

type revisionBody struct {
	GameID uuid.UUID `json:"game_id"`
	model.Revision
}

type restoreRequest struct {
	Rev *int `json:"rev"`
}

// handleCreateGame godoc
//
//	@Summary		Create a game
//	@Description	Allocate a new game owned by the caller. Revision 0 holds the initial state.
//	@Tags			Games
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	createdGame
//	@Header			201	{string}	Location	"/{gameId}/revs/0/"
//	@Failure		400	{object}	apierror.Body	"Missing or invalid credential"
//	@Failure		406	{object}	apierror.Body
//	@Failure		415	{object}	apierror.Body
//	@Failure		429	{object}	apierror.Body
//	@Failure		753	{object}	apierror.Body	"Malformed JSON"
//	@Router			/ [post]
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "create", s.cfg.RateLimits.CreatePerMinute) {
		return
	}
	caller, _ := IdentityFrom(r.Context())
	game, err := s.games.CreateGame(r.Context(), caller)
	if err != nil {
		fail(r, err)
		return
	}
	tip := game.Tip()
	ex := exchangeFrom(r.Context())
	ex.Status = http.StatusCreated
	ex.Location = RevisionPath(game.ID, tip.Index)
	ex.Result = createdGame{GameID: game.ID, Rev: tip.Index}
}

// handleListGames godoc
//
//	@Summary		List games
//	@Description	Summaries of all games in creation order.
//	@Tags			Games
//	@Produce		json
//	@Success		200	{array}	model.GameSummary
//	@Router			/ [get]
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.games.ListGames(r.Context())
	if err != nil {
		fail(r, err)
		return
	}
	exchangeFrom(r.Context()).Result = games
}

// handleGetGame godoc
//
//	@Summary	Get a game
//	@Tags		Games
//	@Produce	json
//	@Param		gameId	path		string	true	"Game id (UUID)"
//	@Success	200		{object}	model.GameSummary
//	@Failure	404		{object}	apierror.Body
//	@Router		/{gameId}/ [get]
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(r)
	if !ok {
		return
	}
	game, err := s.games.GetGame(r.Context(), id)
	if err != nil {
		fail(r, err)
		return
	}
	exchangeFrom(r.Context()).Result = game.Summary()
}

// handleTouchGame serves GET and POST on a game in the flat API. Both return
// the summary to the owner only.
func (s *Server) handleTouchGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(r)
	if !ok {
		return
	}
	caller, _ := IdentityFrom(r.Context())
	game, err := s.games.Touch(r.Context(), caller.UserID, id)
	if err != nil {
		fail(r, err)
		return
	}
	exchangeFrom(r.Context()).Result = game.Summary()
}

// handleRestoreGame godoc
//
//	@Summary		Restore from shadow state
//	@Description	Append a revision whose state is the tip's decrypted shadow state. Responds 204 without appending when the tip has no shadow state.
//	@Tags			Games
//	@Accept			json
//	@Produce		json
//	@Param			gameId	path		string			true	"Game id (UUID)"
//	@Param			body	body		restoreRequest	false	"Expected tip"
//	@Success		201		{object}	revisionBody
//	@Success		204
//	@Failure		403		{object}	apierror.Body
//	@Failure		404		{object}	apierror.Body
//	@Failure		409		{object}	apierror.Body
//	@Router			/{gameId}/ [put]
func (s *Server) handleRestoreGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(r)
	if !ok {
		return
	}
	ex := exchangeFrom(r.Context())
	var req restoreRequest
	if ex.Doc != nil {
		if err := decodeStrict(ex.Doc, &req); err != nil {
			fail(r, apierror.Wrap(apierror.KindInvalidDocument, "Invalid restore request", err.Error(), err))
			return
		}
	}
	caller, _ := IdentityFrom(r.Context())
	rev, err := s.games.Restore(r.Context(), caller.UserID, id, req.Rev)
	if errors.Is(err, revision.ErrNoShadow) {
		ex.Status = http.StatusNoContent
		return
	}
	if err != nil {
		fail(r, err)
		return
	}
	ex.Status = http.StatusCreated
	ex.Location = RevisionPath(id, rev.Index)
	ex.Result = revisionBody{GameID: id, Revision: rev}
}

// handleAppendRevision godoc
//
//	@Summary		Append a revision
//	@Description	Apply a transformation to the tip. The request names the revision it was computed against; a stale base is a conflict.
//	@Tags			Revisions
//	@Accept			json
//	@Produce		json
//	@Param			gameId	path		string					true	"Game id (UUID)"
//	@Param			body	body		revision.Transformation	true	"Transformation"
//	@Success		201		{object}	revisionBody
//	@Failure		400		{object}	apierror.Body
//	@Failure		403		{object}	apierror.Body
//	@Failure		404		{object}	apierror.Body
//	@Failure		409		{object}	apierror.Body
//	@Failure		429		{object}	apierror.Body
//	@Router			/{gameId}/revs/ [post]
func (s *Server) handleAppendRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "revision", s.cfg.RateLimits.RevisionPerMinute) {
		return
	}
	ex := exchangeFrom(r.Context())
	if ex.Doc == nil {
		fail(r, apierror.New(apierror.KindEmptyBody, "Empty request body", "A transformation document is required."))
		return
	}
	t, err := revision.ParseTransformation(ex.Doc)
	if err != nil {
		fail(r, err)
		return
	}
	caller, _ := IdentityFrom(r.Context())
	rev, err := s.games.Append(r.Context(), caller.UserID, id, t)
	if err != nil {
		fail(r, err)
		return
	}
	ex.Status = http.StatusCreated
	ex.Location = RevisionPath(id, rev.Index)
	ex.Result = revisionBody{GameID: id, Revision: rev}
}

// handleListRevisions godoc
//
//	@Summary		List revisions
//	@Description	The whole revision chain, oldest first. Shadow state is included for the owner only.
//	@Tags			Revisions
//	@Produce		json
//	@Param			gameId	path	string	true	"Game id (UUID)"
//	@Success		200		{array}	model.Revision
//	@Failure		404		{object}	apierror.Body
//	@Router			/{gameId}/revs/ [get]
func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(r)
	if !ok {
		return
	}
	caller, _ := IdentityFrom(r.Context())
	revs, err := s.games.ListRevisions(r.Context(), caller.UserID, id)
	if err != nil {
		fail(r, err)
		return
	}
	exchangeFrom(r.Context()).Result = revs
}

// handleGetRevision godoc
//
//	@Summary	Get a revision
//	@Tags		Revisions
//	@Produce	json
//	@Param		gameId	path		string	true	"Game id (UUID)"
//	@Param		rev		path		int		true	"Revision index"
//	@Success	200		{object}	revisionBody
//	@Failure	404		{object}	apierror.Body
//	@Router		/{gameId}/revs/{rev}/ [get]
func (s *Server) handleGetRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDVar(r)
	if !ok {
		return
	}
	index, ok := revVar(r)
	if !ok {
		return
	}
	caller, _ := IdentityFrom(r.Context())
	rev, err := s.games.GetRevision(r.Context(), caller.UserID, id, index)
	if err != nil {
		fail(r, err)
		return
	}
	exchangeFrom(r.Context()).Result = revisionBody{GameID: id, Revision: rev}
}

func decodeStrict(doc []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
