package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Identity is the validated caller credential pair. Token is uuid.Nil for
// strategies that carry no separate access token.
type Identity struct {
	UserID string
	Token  uuid.UUID
}

type Game struct {
	ID        uuid.UUID
	OwnerID   string
	Revisions []Revision
	CreatedAt time.Time
}

// Tip returns the last revision of the chain.
func (g Game) Tip() Revision {
	return g.Revisions[len(g.Revisions)-1]
}

func (g Game) Summary() GameSummary {
	tip := g.Tip()
	return GameSummary{
		ID:        g.ID,
		OwnerID:   g.OwnerID,
		Rev:       tip.Index,
		Revisions: len(g.Revisions),
		CreatedAt: g.CreatedAt,
		UpdatedAt: tip.CreatedAt,
	}
}

type GameSummary struct {
	ID        uuid.UUID `json:"game_id"`
	OwnerID   string    `json:"owner_id"`
	Rev       int       `json:"rev"`
	Revisions int       `json:"revisions"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Revision is one immutable link of a game's revision chain. Shadow holds
// sealed bytes and is never interpreted outside the shadow package.
type Revision struct {
	Index     int             `json:"rev"`
	State     json.RawMessage `json:"state"`
	Shadow    []byte          `json:"shadow,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Draft is the content of a revision before the store assigns its index and
// timestamp.
type Draft struct {
	State  json.RawMessage
	Shadow []byte
}
