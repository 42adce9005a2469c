// Package sessions owns the per-account session document: a bounded list
// of (access, refresh) token pairs with device metadata. The list is always
// read, mutated in memory, and written back whole; no partial mutation API
// exists. Two concurrent logins for the same account can therefore lose one
// entry; accepted for the human-with-few-devices case.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimbusnote/authserver/types"
)

// MaxPerUser bounds the number of unexpired entries an account may hold at
// the moment a new one is admitted.
const MaxPerUser = 4

// ErrMaxSessions is returned by Admit when the pruned list is already at
// capacity.
var ErrMaxSessions = errors.New("maximum number of sessions reached")

// Repository persists one session document per account. Get returns an
// empty list when the account has no document.
type Repository interface {
	Get(ctx context.Context, userID string) ([]types.SessionEntry, error)
	Replace(ctx context.Context, userID string, entries []types.SessionEntry) error
	DeleteAll(ctx context.Context, userID string) error
}

// NewEntry builds a session entry for a freshly issued token pair.
func NewEntry(accessToken, refreshToken, deviceName string, expiresAt, now time.Time) types.SessionEntry {
	return types.SessionEntry{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		LastUsed:     now,
		DeviceName:   deviceName,
		ID:           uuid.NewString(),
	}
}

// Prune drops entries whose expiry has passed. It never persists; callers
// decide when to write the pruned state back.
func Prune(entries []types.SessionEntry, now time.Time) []types.SessionEntry {
	valid := make([]types.SessionEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Expired(now) {
			valid = append(valid, entry)
		}
	}
	return valid
}

// Admit appends the new entry to an already-pruned list, or reports
// ErrMaxSessions with the list unchanged so the caller can surface the
// occupied slots to the user.
func Admit(pruned []types.SessionEntry, entry types.SessionEntry) ([]types.SessionEntry, error) {
	if len(pruned) >= MaxPerUser {
		return pruned, ErrMaxSessions
	}
	return append(pruned, entry), nil
}

// Find returns the entry keyed by the given refresh token.
func Find(entries []types.SessionEntry, refreshToken string) (types.SessionEntry, bool) {
	for _, entry := range entries {
		if entry.RefreshToken == refreshToken {
			return entry, true
		}
	}
	return types.SessionEntry{}, false
}

// Rotate swaps the entry matching refreshToken for one carrying the freshly
// rotated access token. The refresh token, expiry, and device label are
// kept; the session id is regenerated and lastUsed moves to now. Returns
// false when no entry matches.
func Rotate(entries []types.SessionEntry, refreshToken, accessToken string, now time.Time) ([]types.SessionEntry, bool) {
	rotated := false
	out := make([]types.SessionEntry, len(entries))
	for i, entry := range entries {
		if entry.RefreshToken == refreshToken {
			entry.AccessToken = accessToken
			entry.LastUsed = now
			entry.ID = uuid.NewString()
			rotated = true
		}
		out[i] = entry
	}
	return out, rotated
}

// Revoke removes the entry matching refreshToken. A token not present is a
// no-op, making single-device logout idempotent.
func Revoke(entries []types.SessionEntry, refreshToken string) []types.SessionEntry {
	out := make([]types.SessionEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.RefreshToken != refreshToken {
			out = append(out, entry)
		}
	}
	return out
}

// Store couples the list operations to a Repository.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// Load returns the account's pruned session list without persisting the
// pruned state, so the write can be batched with the caller's mutation.
func (s *Store) Load(ctx context.Context, userID string) ([]types.SessionEntry, error) {
	entries, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Prune(entries, time.Now()), nil
}

// LoadAll returns the account's session list as stored, expired entries
// included. Refresh and logout match against the raw list so an expired
// entry can be reported as expired rather than silently absent.
func (s *Store) LoadAll(ctx context.Context, userID string) ([]types.SessionEntry, error) {
	return s.repo.Get(ctx, userID)
}

// Persist writes the full replacement list for the account.
func (s *Store) Persist(ctx context.Context, userID string, entries []types.SessionEntry) error {
	return s.repo.Replace(ctx, userID, entries)
}

// RevokeAll deletes the account's entire session document.
func (s *Store) RevokeAll(ctx context.Context, userID string) error {
	return s.repo.DeleteAll(ctx, userID)
}
