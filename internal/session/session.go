// Package session implements the Session Record (§3): 256-bit random
// IDs minted by the crypto primitive, a sliding-window expiry, and a
// scheduled sweep for garbage collection. Sessions are mutated by
// request handlers and destroyed by logout or expiry — never by user
// code reaching into the database directly, since the ID space itself
// is security-sensitive (§5.6 "Lifecycles").
package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hull/internal/capability"
	"hull/internal/logging"
)

// Session is one row of the session table, decoded.
type Session struct {
	ID         string
	UserFields map[string]any
	CreatedAt  time.Time
	LastSeen   time.Time
	ExpiresAt  time.Time
}

// ErrNotFound is returned by Get when a session ID has no live row —
// whether because it never existed or because it already expired; the
// two are indistinguishable on purpose, matching how a denied capability
// never leaks "absent" vs "expired" to calling code.
var ErrNotFound = errors.New("session: not found")

const createTableSQL = `
CREATE TABLE IF NOT EXISTS hull_sessions (
	id TEXT PRIMARY KEY,
	user_fields TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
)`

// Store manages the session table over the host's database connection
// (the same *capability.DB the DB capability primitive uses — sessions
// are host bookkeeping, not something scripted code queries directly).
type Store struct {
	db     *capability.DB
	crypto *capability.Crypto
}

// NewStore returns a Store bound to db. Call EnsureSchema once before
// first use.
func NewStore(db *capability.DB, crypto *capability.Crypto) *Store {
	return &Store{db: db, crypto: crypto}
}

// EnsureSchema creates the session table if it does not already exist.
func (s *Store) EnsureSchema() error {
	_, err := s.db.Exec(createTableSQL, nil)
	if err != nil {
		return fmt.Errorf("session: creating table: %w", err)
	}
	return nil
}

// Create mints a new 256-bit session ID and inserts its row with the
// sliding window set to now+ttl.
func (s *Store) Create(ctx context.Context, ttl time.Duration, userFields map[string]any) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idBytes, err := s.crypto.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("session: generating id: %w", err)
	}
	id := hex.EncodeToString(idBytes[:])

	if userFields == nil {
		userFields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(userFields)
	if err != nil {
		return nil, fmt.Errorf("session: marshaling user fields: %w", err)
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)

	_, err = s.db.Exec(
		"INSERT INTO hull_sessions (id, user_fields, created_at, last_seen, expires_at) VALUES (?, ?, ?, ?, ?)",
		[]any{id, string(fieldsJSON), now.Unix(), now.Unix(), expires.Unix()},
	)
	if err != nil {
		return nil, fmt.Errorf("session: inserting row: %w", err)
	}

	logging.SessionDebug("session created id=%s expires_at=%s", id, expires)
	return &Session{ID: id, UserFields: userFields, CreatedAt: now, LastSeen: now, ExpiresAt: expires}, nil
}

// Get returns the session for id, or ErrNotFound if it doesn't exist or
// has already expired.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT id, user_fields, created_at, last_seen, expires_at FROM hull_sessions WHERE id = ?", []any{id})
	if err != nil {
		return nil, fmt.Errorf("session: querying %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	sess, err := decodeRow(rows[0])
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Touch implements the sliding window: last_seen moves to now and
// expires_at moves to now+ttl, as if the session were freshly created.
func (s *Store) Touch(ctx context.Context, id string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)
	n, err := s.db.Exec(
		"UPDATE hull_sessions SET last_seen = ?, expires_at = ? WHERE id = ? AND expires_at > ?",
		[]any{now.Unix(), expires.Unix(), id, now.Unix()},
	)
	if err != nil {
		return fmt.Errorf("session: touching %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Destroy removes a session row immediately (logout), independent of
// its expiry.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM hull_sessions WHERE id = ?", []any{id})
	if err != nil {
		return fmt.Errorf("session: destroying %s: %w", id, err)
	}
	logging.SessionDebug("session destroyed id=%s", id)
	return nil
}

// Sweep deletes every row whose sliding window has elapsed, returning
// the number of rows removed (§3: "expired rows are eligible for
// garbage collection by a scheduled task").
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	n, err := s.db.Exec("DELETE FROM hull_sessions WHERE expires_at <= ?", []any{now.Unix()})
	if err != nil {
		return 0, fmt.Errorf("session: sweeping: %w", err)
	}
	if n > 0 {
		logging.SessionDebug("session sweep removed %d expired rows", n)
	}
	return n, nil
}

func decodeRow(row capability.Row) (*Session, error) {
	id, _ := row["id"].(string)
	fieldsRaw, _ := row["user_fields"].(string)

	var fields map[string]any
	if fieldsRaw != "" {
		if err := json.Unmarshal([]byte(fieldsRaw), &fields); err != nil {
			return nil, fmt.Errorf("session: decoding user_fields for %s: %w", id, err)
		}
	}

	createdAt, err := asUnixTime(row["created_at"])
	if err != nil {
		return nil, err
	}
	lastSeen, err := asUnixTime(row["last_seen"])
	if err != nil {
		return nil, err
	}
	expiresAt, err := asUnixTime(row["expires_at"])
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:         id,
		UserFields: fields,
		CreatedAt:  createdAt,
		LastSeen:   lastSeen,
		ExpiresAt:  expiresAt,
	}, nil
}

func asUnixTime(v any) (time.Time, error) {
	switch n := v.(type) {
	case int64:
		return time.Unix(n, 0).UTC(), nil
	case int:
		return time.Unix(int64(n), 0).UTC(), nil
	case float64:
		return time.Unix(int64(n), 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("session: unexpected timestamp type %T", v)
	}
}
