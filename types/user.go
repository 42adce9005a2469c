package types

import "time"

// Roles assignable to an account. New registrations default to RoleUser;
// RoleAdmin is only ever set by administrative tooling.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Name is the display name attached to an account. Last may be empty.
type Name struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// User represents an account in the system.
// It contains identity, credential, and lifecycle metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Email is the user's unique email address.
	Email string `json:"email" db:"email"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Name is the user's display name.
	Name Name `json:"name"`

	// Role indicates the user's authorization level ("USER" or "ADMIN").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Verified reports whether the account's email has been confirmed.
	Verified bool `json:"verified" db:"verified"`

	// Disabled is set by administrative action and blocks every auth path.
	Disabled bool `json:"disabled" db:"disabled"`

	// Deleted is a soft-delete marker. Rows are never physically removed;
	// every auth path checks this flag.
	Deleted bool `json:"deleted" db:"deleted"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the projection of a User that is safe to return to callers.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Name      Name      `json:"name"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	Disabled  bool      `json:"disabled"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public returns the caller-safe projection of the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Name:      u.Name,
		Role:      u.Role,
		Verified:  u.Verified,
		Disabled:  u.Disabled,
		Deleted:   u.Deleted,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
