package store

import (
	"context"
	"database/sql"
	"time"
)

// ResetStore performs the password-reset commit: password update, ticket
// consumption, and optional session revocation in one transaction. A
// half-applied reset (new password with a retryable ticket, or revoked
// sessions with the old password) must never be observable.
type ResetStore struct {
	db *sql.DB
}

func NewResetStore(db *sql.DB) *ResetStore {
	return &ResetStore{db: db}
}

// Apply atomically sets the new password hash, deletes the consumed
// ticket, and, when revokeSessions is set, deletes the account's session
// document. Either all three commit or none do.
func (s *ResetStore) Apply(ctx context.Context, userID, passwordHash, ticketID string, revokeSessions bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const updatePassword = `
		UPDATE users
		SET password_hash = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := tx.ExecContext(ctx, updatePassword, passwordHash, time.Now(), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	const deleteTicket = `DELETE FROM auth_tickets WHERE id = $1`
	if _, err := tx.ExecContext(ctx, deleteTicket, ticketID); err != nil {
		return err
	}

	if revokeSessions {
		const deleteSessions = `DELETE FROM user_sessions WHERE user_id = $1`
		if _, err := tx.ExecContext(ctx, deleteSessions, userID); err != nil {
			return err
		}
	}

	return tx.Commit()
}
