package types

import "time"

// SessionEntry is one device's slot in an account's session document: the
// issued token pair plus metadata about the device that holds it. The JSON
// field names match the stored document format and must not change.
type SessionEntry struct {
	// AccessToken is the short-lived bearer token issued to this device.
	AccessToken string `json:"accessToken"`

	// RefreshToken is the long-lived token this entry is keyed by.
	RefreshToken string `json:"refreshToken"`

	// ExpiresAt is the absolute expiry of the entry. Refresh rotates the
	// access token but never extends this.
	ExpiresAt time.Time `json:"expiresIn"`

	// LastUsed is updated on every successful refresh.
	LastUsed time.Time `json:"lastUsed"`

	// DeviceName is a label derived from the caller's user agent.
	DeviceName string `json:"instanceName"`

	// ID is an opaque per-issue session id, rotated on refresh.
	ID string `json:"tokenid"`
}

// Expired reports whether the entry's absolute expiry has passed.
func (e SessionEntry) Expired(now time.Time) bool {
	return e.ExpiresAt.Before(now)
}
