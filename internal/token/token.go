// Package token signs and verifies the three token kinds used by the auth
// flows: short-lived access JWTs, long-lived refresh JWTs (each under its
// own secret), and stateless HMAC-protected password-reset tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nimbusnote/authserver/types"
)

// claimsVersion tags the claim schema embedded in access and refresh
// tokens. Tokens carrying any other version are rejected as invalid.
const claimsVersion = 1

var (
	// ErrTokenExpired marks a well-formed, correctly signed token whose
	// lifetime has elapsed. Retryable through the refresh flow.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid marks a malformed token, a wrong-key signature, or an
	// unknown claim schema. Non-retryable.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the payload embedded in access and refresh tokens. The account
// flags snapshot state at issuance time; sensitive operations re-check the
// live account.
type Claims struct {
	jwt.RegisteredClaims
	Version  int        `json:"ver"`
	UserID   string     `json:"uid"`
	Email    string     `json:"email"`
	Username string     `json:"username"`
	Name     types.Name `json:"name"`
	Role     string     `json:"role"`
	Verified bool       `json:"verified"`
	Disabled bool       `json:"disabled"`
	Deleted  bool       `json:"deleted"`
}

// Config holds the signing material and lifetimes for a Codec.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetSecret   []byte
	ResetTTL      time.Duration
}

// Codec mints and verifies tokens. It is immutable after construction and
// safe for concurrent use.
type Codec struct {
	cfg Config
}

// New constructs a Codec, applying the default 4h/7d/24h lifetimes for any
// TTL left zero.
func New(cfg Config) *Codec {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 4 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 24 * time.Hour
	}
	return &Codec{cfg: cfg}
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// ResetTTL returns the configured reset-token lifetime.
func (c *Codec) ResetTTL() time.Duration { return c.cfg.ResetTTL }

// SignAccess mints an access token for the user.
func (c *Codec) SignAccess(user types.User) (string, error) {
	return c.sign(user, c.cfg.AccessSecret, c.cfg.AccessTTL)
}

// SignRefresh mints a refresh token for the user.
func (c *Codec) SignRefresh(user types.User) (string, error) {
	return c.sign(user, c.cfg.RefreshSecret, c.cfg.RefreshTTL)
}

func (c *Codec) sign(user types.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Version:  claimsVersion,
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
		Verified: user.Verified,
		Disabled: user.Disabled,
		Deleted:  user.Deleted,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}

// VerifyAccess parses and validates an access token.
func (c *Codec) VerifyAccess(tokenString string) (*Claims, error) {
	return verify(tokenString, c.cfg.AccessSecret)
}

// VerifyRefresh parses and validates a refresh token.
func (c *Codec) VerifyRefresh(tokenString string) (*Claims, error) {
	return verify(tokenString, c.cfg.RefreshSecret)
}

func verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Version != claimsVersion || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
