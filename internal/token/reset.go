package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nimbusnote/authserver/types"
)

// PurposePasswordReset is the only ticket purpose currently minted.
const PurposePasswordReset = "PASS_RESET"

var (
	// ErrResetTokenSignature marks a reset token whose HMAC does not match
	// the received nonce and payload, or one that is structurally broken.
	ErrResetTokenSignature = errors.New("reset token signature mismatch")

	// ErrResetTokenExpired marks a correctly signed reset token whose
	// embedded expiry has passed.
	ErrResetTokenExpired = errors.New("reset token expired")
)

// ResetPayload is the account snapshot sealed inside a reset token. The
// expiry is part of the HMAC'd bytes, so a verifier can reject an expired
// token from the string alone, before touching storage.
type ResetPayload struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Purpose   string `json:"purpose"`
	ExpiresAt int64  `json:"exp"`
}

// Expired reports whether the embedded expiry has passed.
func (p ResetPayload) Expired(now time.Time) bool {
	return now.Unix() > p.ExpiresAt
}

// SignReset mints a stateless, self-verifying password-reset token:
//
//	<nonce> "." <base64url(payload)> "." <hex hmac-sha256(secret, nonce || payload)>
//
// No server-side state is required to verify it; the persisted ticket only
// enforces single use and overwrite invalidation.
func (c *Codec) SignReset(user types.User) (string, error) {
	payload := ResetPayload{
		UserID:    user.ID,
		Email:     user.Email,
		Purpose:   PurposePasswordReset,
		ExpiresAt: time.Now().Add(c.cfg.ResetTTL).Unix(),
	}
	serialized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	nonce, err := randomHex(16)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, c.cfg.ResetSecret)
	mac.Write([]byte(nonce))
	mac.Write(serialized)

	return nonce + "." +
		base64.RawURLEncoding.EncodeToString(serialized) + "." +
		hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyReset recomputes the HMAC over the received nonce and payload and
// checks the embedded expiry. Any structural or signature mismatch is
// ErrResetTokenSignature; only a valid-but-stale token is
// ErrResetTokenExpired.
func (c *Codec) VerifyReset(tokenString string) (*ResetPayload, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, ErrResetTokenSignature
	}

	serialized, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrResetTokenSignature
	}
	digest, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, ErrResetTokenSignature
	}

	mac := hmac.New(sha256.New, c.cfg.ResetSecret)
	mac.Write([]byte(parts[0]))
	mac.Write(serialized)
	if !hmac.Equal(mac.Sum(nil), digest) {
		return nil, ErrResetTokenSignature
	}

	payload := &ResetPayload{}
	if err := json.Unmarshal(serialized, payload); err != nil {
		return nil, ErrResetTokenSignature
	}
	if payload.Purpose != PurposePasswordReset || payload.UserID == "" {
		return nil, ErrResetTokenSignature
	}
	if payload.Expired(time.Now()) {
		return nil, ErrResetTokenExpired
	}
	return payload, nil
}
