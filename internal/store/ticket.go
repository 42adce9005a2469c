package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Ticket is the durable record binding a reset token to an account and an
// expiry. At most one live ticket exists per (user, purpose); re-issuing
// overwrites it, which invalidates the previously mailed link.
type Ticket struct {
	ID        string
	UserID    string
	Purpose   string
	Token     string
	ExpiresAt time.Time
}

// TicketRepository persists reset tickets.
type TicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Upsert creates the account's ticket for the purpose, or overwrites the
// existing one with the new token and expiry.
func (r *TicketRepository) Upsert(ctx context.Context, userID, purpose, tokenString string, expiresAt time.Time) error {
	const query = `
		INSERT INTO auth_tickets (id, user_id, type, token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, type) DO UPDATE
		SET token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, purpose, tokenString, expiresAt)
	return err
}

// GetByToken resolves a ticket by its exact token string and purpose.
func (r *TicketRepository) GetByToken(ctx context.Context, tokenString, purpose string) (Ticket, error) {
	const query = `
		SELECT id, user_id, type, token, expires_at
		FROM auth_tickets
		WHERE token = $1 AND type = $2`
	var ticket Ticket
	err := r.db.QueryRowContext(ctx, query, tokenString, purpose).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Purpose,
		&ticket.Token,
		&ticket.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, err
	}
	return ticket, nil
}
