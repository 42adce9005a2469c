package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nimbusnote/authserver/types"
)

func testUser() types.User {
	return types.User{
		ID:       "user-123",
		Email:    "alice@x.com",
		Username: "alice",
		Name:     types.Name{First: "Alice", Last: "Smith"},
		Role:     types.RoleUser,
		Verified: true,
	}
}

func testCodec(accessTTL, refreshTTL time.Duration) *Codec {
	return New(Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		ResetSecret:   []byte("reset-secret"),
		ResetTTL:      24 * time.Hour,
	})
}

func TestAccessRoundTrip(t *testing.T) {
	t.Parallel()

	c := testCodec(time.Hour, time.Hour)
	user := testUser()

	tok, err := c.SignAccess(user)
	if err != nil {
		t.Fatalf("SignAccess error: %v", err)
	}

	claims, err := c.VerifyAccess(tok)
	if err != nil {
		t.Fatalf("VerifyAccess error: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email || claims.Username != user.Username {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Name != user.Name || claims.Role != user.Role || !claims.Verified {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	t.Parallel()

	c := testCodec(time.Hour, time.Hour)
	tok, err := c.SignRefresh(testUser())
	if err != nil {
		t.Fatalf("SignRefresh error: %v", err)
	}

	claims, err := c.VerifyRefresh(tok)
	if err != nil {
		t.Fatalf("VerifyRefresh error: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
}

func TestExpiredIsDistinctFromInvalid(t *testing.T) {
	t.Parallel()

	c := testCodec(-time.Second, -time.Second)
	tok, err := c.SignAccess(testUser())
	if err != nil {
		t.Fatalf("SignAccess error: %v", err)
	}

	_, err = c.VerifyAccess(tok)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestWrongKeyIsInvalid(t *testing.T) {
	t.Parallel()

	c := testCodec(time.Hour, time.Hour)
	tok, err := c.SignRefresh(testUser())
	if err != nil {
		t.Fatalf("SignRefresh error: %v", err)
	}

	// A refresh token must never verify under the access key.
	_, err = c.VerifyAccess(tok)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestMalformedIsInvalid(t *testing.T) {
	t.Parallel()

	c := testCodec(time.Hour, time.Hour)
	_, err := c.VerifyAccess("not.a.jwt")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestResetRoundTrip(t *testing.T) {
	t.Parallel()

	c := testCodec(time.Hour, time.Hour)
	user := testUser()

	tok, err := c.SignReset(user)
	if err != nil {
		t.Fatalf("SignReset error: %v", err)
	}

	payload, err := c.VerifyReset(tok)
	if err != nil {
		t.Fatalf("VerifyReset error: %v", err)
	}
	if payload.UserID != user.ID || payload.Email != user.Email {
		t.Fatalf("payload mismatch: %+v", payload)
	}
	if payload.Purpose != PurposePasswordReset {
		t.Fatalf("unexpected purpose %q", payload.Purpose)
	}
}

func TestResetNonceVariesPerMint(t *testing.T) {
	t.Parallel()

	c := testCodec(time.Hour, time.Hour)
	first, err := c.SignReset(testUser())
	if err != nil {
		t.Fatalf("SignReset error: %v", err)
	}
	second, err := c.SignReset(testUser())
	if err != nil {
		t.Fatalf("SignReset error: %v", err)
	}
	if first == second {
		t.Fatalf("two reset tokens for the same account must differ")
	}
}

func TestResetTamperedPayload(t *testing.T) {
	t.Parallel()

	c := testCodec(time.Hour, time.Hour)
	tok, err := c.SignReset(testUser())
	if err != nil {
		t.Fatalf("SignReset error: %v", err)
	}

	parts := strings.Split(tok, ".")
	forged := types.User{ID: "user-999", Email: "mallory@x.com"}
	forgedTok, err := c.SignReset(forged)
	if err != nil {
		t.Fatalf("SignReset error: %v", err)
	}
	forgedParts := strings.Split(forgedTok, ".")

	// Splice the forged payload under the original nonce and digest.
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]
	if _, err := c.VerifyReset(tampered); !errors.Is(err, ErrResetTokenSignature) {
		t.Fatalf("expected ErrResetTokenSignature, got %v", err)
	}
}

func TestResetExpired(t *testing.T) {
	t.Parallel()

	c := New(Config{
		AccessSecret:  []byte("a"),
		RefreshSecret: []byte("r"),
		ResetSecret:   []byte("reset-secret"),
		ResetTTL:      -time.Minute,
		AccessTTL:     time.Hour,
		RefreshTTL:    time.Hour,
	})
	tok, err := c.SignReset(testUser())
	if err != nil {
		t.Fatalf("SignReset error: %v", err)
	}

	if _, err := c.VerifyReset(tok); !errors.Is(err, ErrResetTokenExpired) {
		t.Fatalf("expected ErrResetTokenExpired, got %v", err)
	}
}

func TestResetWrongSecret(t *testing.T) {
	t.Parallel()

	c := testCodec(time.Hour, time.Hour)
	other := New(Config{
		AccessSecret:  []byte("a"),
		RefreshSecret: []byte("r"),
		ResetSecret:   []byte("different-secret"),
	})

	tok, err := c.SignReset(testUser())
	if err != nil {
		t.Fatalf("SignReset error: %v", err)
	}
	if _, err := other.VerifyReset(tok); !errors.Is(err, ErrResetTokenSignature) {
		t.Fatalf("expected ErrResetTokenSignature, got %v", err)
	}
}

func TestRandomHelpers(t *testing.T) {
	t.Parallel()

	pw, err := RandomPassword(16)
	if err != nil {
		t.Fatalf("RandomPassword error: %v", err)
	}
	if len(pw) != 16 {
		t.Fatalf("unexpected password length %d", len(pw))
	}

	suffix, err := UsernameSuffix()
	if err != nil {
		t.Fatalf("UsernameSuffix error: %v", err)
	}
	if len(suffix) != suffixLength {
		t.Fatalf("unexpected suffix length %d", len(suffix))
	}
	if suffix != strings.ToLower(suffix) {
		t.Fatalf("suffix must be lowercase: %q", suffix)
	}
}
