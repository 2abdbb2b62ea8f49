// Package revision implements the optimistic-concurrency protocol over a
// game's revision chain. An append names the revision it was computed
// against and is accepted only when that revision is still the tip.
package revision

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/alphabot-ai/gamerev/internal/shadow"
	"github.com/alphabot-ai/gamerev/internal/store"
	"github.com/google/uuid"
)

var (
	ErrForbidden             = errors.New("caller does not own the game")
	ErrInvalidTransformation = errors.New("invalid transformation")
	ErrNoShadow              = errors.New("tip has no shadow state")
)

const maxIDAttempts = 4

// OwnerAuthorizer decides whether callerID owns game. For reads the game
// carries only ID and OwnerID.
type OwnerAuthorizer interface {
	AuthorizeOwner(ctx context.Context, callerID string, game model.Game) error
}

type OwnerFunc func(ctx context.Context, callerID string, game model.Game) error

func (f OwnerFunc) AuthorizeOwner(ctx context.Context, callerID string, game model.Game) error {
	return f(ctx, callerID, game)
}

// SameOwner admits only the user that created the game.
var SameOwner = OwnerFunc(func(_ context.Context, callerID string, game model.Game) error {
	if callerID != game.OwnerID {
		return ErrForbidden
	}
	return nil
})

type Service struct {
	store     store.GameStore
	sealer    *shadow.Sealer
	authorize OwnerAuthorizer
	initial   InitialStateFunc
	newID     func() uuid.UUID
}

type Option func(*Service)

func WithAuthorizer(a OwnerAuthorizer) Option {
	return func(s *Service) { s.authorize = a }
}

func WithInitialState(f InitialStateFunc) Option {
	return func(s *Service) { s.initial = f }
}

// WithIDs replaces the game id generator.
func WithIDs(f func() uuid.UUID) Option {
	return func(s *Service) { s.newID = f }
}

func NewService(st store.GameStore, sealer *shadow.Sealer, opts ...Option) *Service {
	s := &Service{
		store:     st,
		sealer:    sealer,
		authorize: SameOwner,
		initial:   EmptyState,
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGame allocates a game owned by caller with revision 0 built by the
// initial state factory. The game id never equals the caller's access token.
func (s *Service) CreateGame(ctx context.Context, caller model.Identity) (model.Game, error) {
	state, err := s.initial(caller.UserID)
	if err != nil {
		return model.Game{}, fmt.Errorf("initial state: %w", err)
	}
	for attempt := 0; ; attempt++ {
		id := s.newID()
		if id == uuid.Nil || (caller.Token != uuid.Nil && id == caller.Token) {
			if attempt >= maxIDAttempts {
				return model.Game{}, errors.New("could not allocate a game id")
			}
			continue
		}
		game, err := s.store.CreateGame(ctx, id, caller.UserID, model.Draft{State: state})
		if errors.Is(err, store.ErrDuplicate) && attempt < maxIDAttempts {
			continue
		}
		return game, err
	}
}

func (s *Service) GetGame(ctx context.Context, id uuid.UUID) (model.Game, error) {
	return s.store.GetGame(ctx, id)
}

func (s *Service) ListGames(ctx context.Context) ([]model.GameSummary, error) {
	return s.store.ListGames(ctx)
}

// Touch returns the game if callerID owns it.
func (s *Service) Touch(ctx context.Context, callerID string, id uuid.UUID) (model.Game, error) {
	game, err := s.store.GetGame(ctx, id)
	if err != nil {
		return model.Game{}, err
	}
	if err := s.authorize.AuthorizeOwner(ctx, callerID, game); err != nil {
		return model.Game{}, err
	}
	return game, nil
}

// ListRevisions returns the chain. Shadow bytes are stripped unless callerID
// owns the game.
func (s *Service) ListRevisions(ctx context.Context, callerID string, id uuid.UUID) ([]model.Revision, error) {
	revs, err := s.store.ListRevisions(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(revs, hasShadow) {
		return revs, nil
	}
	owner, err := s.ownsByID(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if !owner {
		for i := range revs {
			revs[i].Shadow = nil
		}
	}
	return revs, nil
}

func (s *Service) GetRevision(ctx context.Context, callerID string, id uuid.UUID, index int) (model.Revision, error) {
	if index < 0 {
		return model.Revision{}, store.ErrNotFound
	}
	rev, err := s.store.GetRevision(ctx, id, index)
	if err != nil {
		return model.Revision{}, err
	}
	if !hasShadow(rev) {
		return rev, nil
	}
	owner, err := s.ownsByID(ctx, callerID, id)
	if err != nil {
		return model.Revision{}, err
	}
	if !owner {
		rev.Shadow = nil
	}
	return rev, nil
}

// Append applies t to the tip when t.Rev names the tip. Ownership is checked
// before the base revision, so a stranger gets ErrForbidden even with a
// stale or future base.
func (s *Service) Append(ctx context.Context, callerID string, id uuid.UUID, t Transformation) (model.Revision, error) {
	if err := t.Validate(); err != nil {
		return model.Revision{}, err
	}
	game, err := s.store.GetGame(ctx, id)
	if err != nil {
		return model.Revision{}, err
	}
	if err := s.authorize.AuthorizeOwner(ctx, callerID, game); err != nil {
		return model.Revision{}, err
	}

	base := *t.Rev
	var sealed []byte
	if t.Shadow != nil {
		if s.sealer == nil {
			return model.Revision{}, errors.New("shadow state supplied but no sealer configured")
		}
		if sealed, err = s.sealer.Seal(id, base+1, t.Shadow); err != nil {
			return model.Revision{}, err
		}
	}

	return s.store.AppendRevision(ctx, id, base, func(tip model.Revision) (model.Draft, error) {
		state, err := t.Apply(tip.State)
		if err != nil {
			return model.Draft{}, err
		}
		return model.Draft{State: state, Shadow: sealed}, nil
	})
}

// Restore appends a revision whose state is the tip's decrypted shadow. The
// shadow is carried forward. A nil expected means the current tip. When the
// tip has no shadow nothing is appended and ErrNoShadow is returned.
func (s *Service) Restore(ctx context.Context, callerID string, id uuid.UUID, expected *int) (model.Revision, error) {
	game, err := s.store.GetGame(ctx, id)
	if err != nil {
		return model.Revision{}, err
	}
	if err := s.authorize.AuthorizeOwner(ctx, callerID, game); err != nil {
		return model.Revision{}, err
	}
	base := game.Tip().Index
	if expected != nil {
		base = *expected
	}

	return s.store.AppendRevision(ctx, id, base, func(tip model.Revision) (model.Draft, error) {
		if tip.Shadow == nil {
			return model.Draft{}, ErrNoShadow
		}
		if s.sealer == nil {
			return model.Draft{}, errors.New("shadow state present but no sealer configured")
		}
		plain, err := s.sealer.Open(id, tip.Index, tip.Shadow)
		if err != nil {
			return model.Draft{}, fmt.Errorf("open shadow of rev %d: %w", tip.Index, err)
		}
		next, err := s.sealer.Seal(id, tip.Index+1, plain)
		if err != nil {
			return model.Draft{}, err
		}
		return model.Draft{State: plain, Shadow: next}, nil
	})
}

// ownsByID authorizes callerID against a game header. Read checks see only
// the game's ID and OwnerID, not its revisions.
func (s *Service) ownsByID(ctx context.Context, callerID string, id uuid.UUID) (bool, error) {
	ownerID, err := s.store.GetOwner(ctx, id)
	if err != nil {
		return false, err
	}
	return s.authorize.AuthorizeOwner(ctx, callerID, model.Game{ID: id, OwnerID: ownerID}) == nil, nil
}

func hasShadow(r model.Revision) bool {
	return len(r.Shadow) > 0
}
