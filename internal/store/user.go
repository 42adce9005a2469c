package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimbusnote/authserver/types"
)

// UserRepository handles persistence for user accounts.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, email, username, first_name, last_name, role, password_hash,
	verified, disabled, deleted, created_at, updated_at`

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.Name.First,
		&user.Name.Last,
		&user.Role,
		&user.PasswordHash,
		&user.Verified,
		&user.Disabled,
		&user.Deleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetByEmailOrUsername matches either identifier; used by the password
// reset request, which accepts both.
func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE email = $1 OR username = $2 LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, email, username))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (
			id, email, username, first_name, last_name, role, password_hash,
			verified, disabled, deleted, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Username,
		user.Name.First,
		user.Name.Last,
		user.Role,
		user.PasswordHash,
		user.Verified,
		user.Disabled,
		user.Deleted,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}
