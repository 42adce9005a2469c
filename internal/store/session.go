package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nimbusnote/authserver/types"
)

// SessionRepository persists one session document per account: the full
// entry list serialized as JSONB and replaced whole on every write. There
// is deliberately no partial mutation query.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get returns the account's session entries, or an empty list when the
// account has no document.
func (r *SessionRepository) Get(ctx context.Context, userID string) ([]types.SessionEntry, error) {
	const query = `SELECT tokens FROM user_sessions WHERE user_id = $1`
	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []types.SessionEntry{}, nil
		}
		return nil, err
	}

	var entries []types.SessionEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Replace writes the full replacement list for the account, creating the
// document on first login.
func (r *SessionRepository) Replace(ctx context.Context, userID string, entries []types.SessionEntry) error {
	if entries == nil {
		entries = []types.SessionEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO user_sessions (user_id, tokens, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET tokens = EXCLUDED.tokens,
			updated_at = EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, query, userID, raw, time.Now())
	return err
}

// DeleteAll removes the account's session document. A missing document is
// not an error.
func (r *SessionRepository) DeleteAll(ctx context.Context, userID string) error {
	const query = `DELETE FROM user_sessions WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
