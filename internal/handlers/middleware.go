package handlers

import (
	"net/http"

	"github.com/nimbusnote/authserver/internal/services"
	"github.com/nimbusnote/authserver/internal/token"
	"github.com/nimbusnote/authserver/types"
)

// Guard statuses differ from flow statuses so the frontend can tell "your
// credential is bad" (re-authenticate) apart from "your request is bad".
const (
	statusNoToken      = 409
	statusInvalidToken = 410
)

// Guard verifies tokens on protected routes and injects the token's user
// snapshot into the request context.
type Guard struct {
	codec *token.Codec
	svc   *services.AuthService
}

func NewGuard(codec *token.Codec, svc *services.AuthService) *Guard {
	return &Guard{codec: codec, svc: svc}
}

// RequireAccess admits requests carrying a valid access token, from cookie
// or bearer header. The account is re-checked against the store so a token
// minted before deletion stops working immediately.
func (g *Guard) RequireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := accessTokenFrom(r)
		if tokenString == "" {
			writeGuardFailure(w, statusNoToken, services.MsgNoToken)
			return
		}

		claims, err := g.codec.VerifyAccess(tokenString)
		if err != nil {
			writeGuardFailure(w, statusInvalidToken, services.MsgInvalidToken)
			return
		}

		if _, err := g.svc.GetUser(r.Context(), claims.UserID); err != nil {
			writeGuardFailure(w, statusInvalidToken, services.MsgUserNotFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), claimsUser(claims))))
	})
}

// RequireRefresh admits requests carrying a valid refresh token cookie.
// No store re-check here; the refresh flow itself matches the token
// against the account's session document.
func (g *Guard) RequireRefresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := refreshTokenFrom(r)
		if tokenString == "" {
			writeGuardFailure(w, statusNoToken, services.MsgNoToken)
			return
		}

		claims, err := g.codec.VerifyRefresh(tokenString)
		if err != nil {
			writeGuardFailure(w, statusInvalidToken, services.MsgInvalidToken)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), claimsUser(claims))))
	})
}

// claimsUser rebuilds the user snapshot embedded at token issuance.
func claimsUser(claims *token.Claims) types.User {
	return types.User{
		ID:       claims.UserID,
		Email:    claims.Email,
		Username: claims.Username,
		Name:     claims.Name,
		Role:     claims.Role,
		Verified: claims.Verified,
		Disabled: claims.Disabled,
		Deleted:  claims.Deleted,
	}
}
