// Package memory is the process-lifetime game store. Games live in an index
// keyed by game id; each game carries its own lock so operations on different
// games never contend.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/alphabot-ai/gamerev/internal/store"
	"github.com/google/uuid"
)

type Store struct {
	games sync.Map // uuid.UUID -> *entry

	orderMu sync.Mutex
	order   []uuid.UUID

	pairs   sync.Map // user id -> uuid.UUID
	pairSeq atomic.Int64

	now func() time.Time
}

type entry struct {
	mu   sync.RWMutex
	game model.Game
}

func New() *Store {
	return &Store{now: time.Now}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateGame(_ context.Context, id uuid.UUID, ownerID string, initial model.Draft) (model.Game, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	created := s.now()
	e := &entry{game: model.Game{
		ID:      id,
		OwnerID: ownerID,
		Revisions: []model.Revision{{
			Index:     0,
			State:     initial.State,
			Shadow:    initial.Shadow,
			CreatedAt: created,
		}},
		CreatedAt: created,
	}}
	out := snapshot(e.game)

	if _, loaded := s.games.LoadOrStore(id, e); loaded {
		return model.Game{}, fmt.Errorf("game %s: %w", id, store.ErrDuplicate)
	}
	s.orderMu.Lock()
	s.order = append(s.order, id)
	s.orderMu.Unlock()
	return out, nil
}

func (s *Store) GetGame(_ context.Context, id uuid.UUID) (model.Game, error) {
	e, ok := s.lookup(id)
	if !ok {
		return model.Game{}, store.ErrNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return snapshot(e.game), nil
}

func (s *Store) GetOwner(_ context.Context, id uuid.UUID) (string, error) {
	e, ok := s.lookup(id)
	if !ok {
		return "", store.ErrNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.game.OwnerID, nil
}

func (s *Store) ListGames(_ context.Context) ([]model.GameSummary, error) {
	s.orderMu.Lock()
	ids := slices.Clone(s.order)
	s.orderMu.Unlock()

	out := make([]model.GameSummary, 0, len(ids))
	for _, id := range ids {
		e, ok := s.lookup(id)
		if !ok {
			continue
		}
		e.mu.RLock()
		out = append(out, e.game.Summary())
		e.mu.RUnlock()
	}
	return out, nil
}

func (s *Store) ListRevisions(_ context.Context, id uuid.UUID) ([]model.Revision, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.game.Revisions), nil
}

func (s *Store) GetRevision(_ context.Context, id uuid.UUID, index int) (model.Revision, error) {
	e, ok := s.lookup(id)
	if !ok {
		return model.Revision{}, store.ErrNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if index < 0 || index >= len(e.game.Revisions) {
		return model.Revision{}, store.ErrNotFound
	}
	return e.game.Revisions[index], nil
}

func (s *Store) AppendRevision(_ context.Context, id uuid.UUID, expectedPrior int, build store.BuildFunc) (model.Revision, error) {
	e, ok := s.lookup(id)
	if !ok {
		return model.Revision{}, store.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tip := e.game.Tip()
	if expectedPrior != tip.Index {
		return model.Revision{}, fmt.Errorf("game %s at rev %d, based on %d: %w", id, tip.Index, expectedPrior, store.ErrConflict)
	}
	draft, err := build(tip)
	if err != nil {
		return model.Revision{}, err
	}
	rev := model.Revision{
		Index:     tip.Index + 1,
		State:     draft.State,
		Shadow:    draft.Shadow,
		CreatedAt: s.now(),
	}
	e.game.Revisions = append(e.game.Revisions, rev)
	return rev, nil
}

func (s *Store) CreatePairing(_ context.Context, token uuid.UUID, userID func(seq int64) string) (string, error) {
	id := userID(s.pairSeq.Add(1))
	if _, loaded := s.pairs.LoadOrStore(id, token); loaded {
		return "", fmt.Errorf("pairing %s: %w", id, store.ErrDuplicate)
	}
	return id, nil
}

func (s *Store) GetPairing(_ context.Context, userID string) (uuid.UUID, error) {
	v, ok := s.pairs.Load(userID)
	if !ok {
		return uuid.Nil, store.ErrNotFound
	}
	return v.(uuid.UUID), nil
}

func (s *Store) lookup(id uuid.UUID) (*entry, bool) {
	v, ok := s.games.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// snapshot detaches the revision slice so later appends never alias the
// caller's view.
func snapshot(g model.Game) model.Game {
	g.Revisions = slices.Clone(g.Revisions)
	return g
}
