package store

import (
	"context"
	"errors"

	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("revision conflict")
	ErrDuplicate = errors.New("duplicate key")
)

// BuildFunc computes the next revision from the current tip. It runs while the
// game is held exclusively, so it must not block on anything but local work.
type BuildFunc func(tip model.Revision) (model.Draft, error)

type Store interface {
	GameStore
	PairingStore
	Close() error
}

type GameStore interface {
	// CreateGame stores a new game with initial as revision 0. A nil id asks
	// the store to allocate one.
	CreateGame(ctx context.Context, id uuid.UUID, ownerID string, initial model.Draft) (model.Game, error)
	GetGame(ctx context.Context, id uuid.UUID) (model.Game, error)
	// GetOwner returns the owner of the game without loading its revisions.
	GetOwner(ctx context.Context, id uuid.UUID) (string, error)
	ListGames(ctx context.Context) ([]model.GameSummary, error)
	ListRevisions(ctx context.Context, id uuid.UUID) ([]model.Revision, error)
	GetRevision(ctx context.Context, id uuid.UUID, index int) (model.Revision, error)
	// AppendRevision appends build's draft at expectedPrior+1 when
	// expectedPrior is the current tip index, and fails with ErrConflict
	// otherwise. The check and the append are atomic per game.
	AppendRevision(ctx context.Context, id uuid.UUID, expectedPrior int, build BuildFunc) (model.Revision, error)
}

// PairingStore records issued (user id, access token) pairs.
type PairingStore interface {
	// CreatePairing allocates the next anonymous sequence number and stores
	// token against the user id derived from it by userID.
	CreatePairing(ctx context.Context, token uuid.UUID, userID func(seq int64) string) (string, error)
	GetPairing(ctx context.Context, userID string) (uuid.UUID, error)
}
