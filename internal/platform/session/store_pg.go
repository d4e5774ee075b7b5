package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ---------------------------------------------------------------------------
// pgRow / pgConn abstractions (allow unit testing without a real DB)
// ---------------------------------------------------------------------------

type pgRow interface {
	Scan(dest ...any) error
}

// pgConn is the minimal database interface required by PGStore.
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgRow
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// ---------------------------------------------------------------------------
// PGStore
// ---------------------------------------------------------------------------

// PGStore keeps sessions in the console_sessions table (see
// migrations/001_console_sessions.sql). Each credential slot is stored as an
// AES-GCM sealed JSON blob so tokens are never at rest in clear text.
type PGStore struct {
	db     pgConn
	sealer *Sealer
}

func NewPGStore(db pgConn, sealer *Sealer) *PGStore {
	return &PGStore{db: db, sealer: sealer}
}

// NewPGStoreFromPool is the constructor used in production.
func NewPGStoreFromPool(pool *pgxpool.Pool, sealer *Sealer) *PGStore {
	return &PGStore{db: &pgxPoolWrapper{pool: pool}, sealer: sealer}
}

func (s *PGStore) seal(c *Credential) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}
	return s.sealer.Seal(data)
}

func (s *PGStore) open(blob []byte) (*Credential, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	data, err := s.sealer.Open(blob)
	if err != nil {
		return nil, err
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return &c, nil
}

func (s *PGStore) Save(ctx context.Context, sess *Session) error {
	staff, err := s.seal(sess.Staff)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	admin, err := s.seal(sess.Admin)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	const query = `INSERT INTO console_sessions (id, staff, admin, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET staff      = EXCLUDED.staff,
                               admin      = EXCLUDED.admin,
                               updated_at = EXCLUDED.updated_at,
                               expires_at = EXCLUDED.expires_at`

	if _, err := s.db.Exec(ctx, query, sess.ID, staff, admin, sess.CreatedAt, sess.UpdatedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Session, error) {
	const query = `SELECT staff, admin, created_at, updated_at, expires_at FROM console_sessions
WHERE id = $1 AND expires_at > now()`

	var staff, admin []byte
	sess := &Session{ID: id}
	if err := s.db.QueryRow(ctx, query, id).Scan(&staff, &admin, &sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var err error
	if sess.Staff, err = s.open(staff); err != nil {
		return nil, fmt.Errorf("get session: staff slot: %w", err)
	}
	if sess.Admin, err = s.open(admin); err != nil {
		return nil, fmt.Errorf("get session: admin slot: %w", err)
	}
	return sess, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM console_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.db.Exec(ctx, `DELETE FROM console_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(n), nil
}

// isNoRows returns true when the error represents a "no rows" condition.
// It works with both pgx (pgx.ErrNoRows) and the mock used in tests.
func isNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "no rows")
}

// pgxPoolWrapper adapts *pgxpool.Pool to pgConn; Exec reports rows affected
// instead of the command tag.
type pgxPoolWrapper struct {
	pool *pgxpool.Pool
}

func (w *pgxPoolWrapper) QueryRow(ctx context.Context, sql string, args ...any) pgRow {
	return w.pool.QueryRow(ctx, sql, args...)
}

func (w *pgxPoolWrapper) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := w.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
