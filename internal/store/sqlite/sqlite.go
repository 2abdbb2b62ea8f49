package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/alphabot-ai/gamerev/internal/store"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite admits one writer at a time; a single connection turns lock
	// contention into queueing instead of SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: Initial schema
	`
CREATE TABLE IF NOT EXISTS games (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	owner_id TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS revisions (
	game_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	state TEXT NOT NULL,
	shadow BLOB,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (game_id, idx),
	FOREIGN KEY(game_id) REFERENCES games(id)
);

CREATE TABLE IF NOT EXISTS pairings (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT UNIQUE,
	token TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) CreateGame(ctx context.Context, id uuid.UUID, ownerID string, initial model.Draft) (game model.Game, err error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	created := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Game{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO games (id, owner_id, created_at) VALUES (?, ?, ?)
`, id.String(), ownerID, created.UnixNano()); err != nil {
		if isUniqueViolation(err) {
			return model.Game{}, fmt.Errorf("game %s: %w", id, store.ErrDuplicate)
		}
		return model.Game{}, err
	}
	if _, err = tx.ExecContext(ctx, `
INSERT INTO revisions (game_id, idx, state, shadow, created_at) VALUES (?, 0, ?, ?, ?)
`, id.String(), string(initial.State), nullIfEmpty(initial.Shadow), created.UnixNano()); err != nil {
		return model.Game{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Game{}, err
	}

	return model.Game{
		ID:      id,
		OwnerID: ownerID,
		Revisions: []model.Revision{{
			Index:     0,
			State:     initial.State,
			Shadow:    initial.Shadow,
			CreatedAt: time.Unix(0, created.UnixNano()),
		}},
		CreatedAt: time.Unix(0, created.UnixNano()),
	}, nil
}

func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (model.Game, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Game{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT id, owner_id, created_at FROM games WHERE id = ?`, id.String())
	game, err := scanGame(row)
	if err != nil {
		return model.Game{}, err
	}
	game.Revisions, err = listRevisions(ctx, tx, id)
	if err != nil {
		return model.Game{}, err
	}
	return game, nil
}

func (s *Store) GetOwner(ctx context.Context, id uuid.UUID) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM games WHERE id = ?`, id.String()).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return owner, err
}

func (s *Store) ListGames(ctx context.Context) ([]model.GameSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT g.id, g.owner_id, g.created_at, COUNT(r.idx), MAX(r.idx), MAX(r.created_at)
FROM games g
JOIN revisions r ON r.game_id = g.id
GROUP BY g.seq
ORDER BY g.seq ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := make([]model.GameSummary, 0)
	for rows.Next() {
		var (
			g       model.GameSummary
			id      string
			created int64
			updated int64
		)
		if err := rows.Scan(&id, &g.OwnerID, &created, &g.Revisions, &g.Rev, &updated); err != nil {
			return nil, err
		}
		if g.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("game id %q: %w", id, err)
		}
		g.CreatedAt = time.Unix(0, created)
		g.UpdatedAt = time.Unix(0, updated)
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *Store) ListRevisions(ctx context.Context, id uuid.UUID) ([]model.Revision, error) {
	revs, err := listRevisions(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, store.ErrNotFound
	}
	return revs, nil
}

func (s *Store) GetRevision(ctx context.Context, id uuid.UUID, index int) (model.Revision, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT idx, state, shadow, created_at FROM revisions WHERE game_id = ? AND idx = ?
`, id.String(), index)
	return scanRevision(row)
}

func (s *Store) AppendRevision(ctx context.Context, id uuid.UUID, expectedPrior int, build store.BuildFunc) (rev model.Revision, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Revision{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `
SELECT idx, state, shadow, created_at FROM revisions
WHERE game_id = ?
ORDER BY idx DESC
LIMIT 1
`, id.String())
	tip, err := scanRevision(row)
	if err != nil {
		return model.Revision{}, err
	}
	if expectedPrior != tip.Index {
		return model.Revision{}, fmt.Errorf("game %s at rev %d, based on %d: %w", id, tip.Index, expectedPrior, store.ErrConflict)
	}

	draft, err := build(tip)
	if err != nil {
		return model.Revision{}, err
	}
	created := s.now().UnixNano()
	if _, err = tx.ExecContext(ctx, `
INSERT INTO revisions (game_id, idx, state, shadow, created_at) VALUES (?, ?, ?, ?, ?)
`, id.String(), tip.Index+1, string(draft.State), nullIfEmpty(draft.Shadow), created); err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("game %s rev %d: %w", id, tip.Index+1, store.ErrConflict)
		}
		return model.Revision{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Revision{}, err
	}
	return model.Revision{
		Index:     tip.Index + 1,
		State:     draft.State,
		Shadow:    draft.Shadow,
		CreatedAt: time.Unix(0, created),
	}, nil
}

func (s *Store) CreatePairing(ctx context.Context, token uuid.UUID, userID func(seq int64) string) (id string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO pairings (user_id, token, created_at) VALUES (NULL, ?, ?)
`, token.String(), s.now().Unix())
	if err != nil {
		return "", err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	id = userID(seq)
	if _, err = tx.ExecContext(ctx, `UPDATE pairings SET user_id = ? WHERE seq = ?`, id, seq); err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("pairing %s: %w", id, store.ErrDuplicate)
		}
		return "", err
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetPairing(ctx context.Context, userID string) (uuid.UUID, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM pairings WHERE user_id = ?`, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, store.ErrNotFound
		}
		return uuid.Nil, err
	}
	return uuid.Parse(token)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRevisions(ctx context.Context, q queryer, id uuid.UUID) ([]model.Revision, error) {
	rows, err := q.QueryContext(ctx, `
SELECT idx, state, shadow, created_at FROM revisions
WHERE game_id = ?
ORDER BY idx ASC
`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revs []model.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

func scanGame(scanner interface{ Scan(dest ...any) error }) (model.Game, error) {
	var (
		g       model.Game
		id      string
		created int64
	)
	if err := scanner.Scan(&id, &g.OwnerID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Game{}, store.ErrNotFound
		}
		return model.Game{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.Game{}, fmt.Errorf("game id %q: %w", id, err)
	}
	g.ID = parsed
	g.CreatedAt = time.Unix(0, created)
	return g, nil
}

func scanRevision(scanner interface{ Scan(dest ...any) error }) (model.Revision, error) {
	var (
		r       model.Revision
		state   string
		shadow  []byte
		created int64
	)
	if err := scanner.Scan(&r.Index, &state, &shadow, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Revision{}, store.ErrNotFound
		}
		return model.Revision{}, err
	}
	r.State = []byte(state)
	if len(shadow) > 0 {
		r.Shadow = shadow
	}
	r.CreatedAt = time.Unix(0, created)
	return r, nil
}

func nullIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
