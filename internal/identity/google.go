// Package identity verifies external identity-provider credentials and
// maps them to profile claims the auth flows can provision from.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nimbusnote/authserver/internal/services"
)

const defaultUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleVerifier resolves a Google OAuth access token to the account's
// profile through the userinfo endpoint.
type GoogleVerifier struct {
	client      *http.Client
	userinfoURL string
}

// NewGoogleVerifier constructs a verifier. userinfoURL overrides the
// endpoint for tests; pass "" for the real one.
func NewGoogleVerifier(userinfoURL string) *GoogleVerifier {
	if userinfoURL == "" {
		userinfoURL = defaultUserinfoURL
	}
	return &GoogleVerifier{
		client:      &http.Client{Timeout: 10 * time.Second},
		userinfoURL: userinfoURL,
	}
}

type userinfoResponse struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Verify exchanges the credential for the holder's profile.
func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (services.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
	if err != nil {
		return services.ExternalIdentity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return services.ExternalIdentity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.ExternalIdentity{}, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return services.ExternalIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return services.ExternalIdentity{}, fmt.Errorf("userinfo response missing email")
	}

	return services.ExternalIdentity{
		Email:      info.Email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
	}, nil
}
