package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/nimbusnote/authserver/internal/services"
	"github.com/nimbusnote/authserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// Cookie names are part of the wire contract with the frontend; the legacy
// aliases are still honored on reads.
const (
	cookieAccessToken        = "accessToken"
	cookieAccessTokenLegacy  = "token"
	cookieRefreshToken       = "refreshToken"
	cookieRefreshTokenLegacy = "refreshAccessToken"
)

// Envelope is the uniform response body. The transport status is always
// 200; Status carries the semantic code. Guard rejections use Reason
// instead of Message.
type Envelope struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Data    any    `json:"data"`
}

func writeEnvelope(w http.ResponseWriter, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(envelope)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(w, Envelope{Status: status, Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(w, Envelope{Status: status, Success: false, Message: message, Data: data})
}

func writeGuardFailure(w http.ResponseWriter, status int, reason string) {
	writeEnvelope(w, Envelope{Status: status, Success: false, Reason: reason})
}

// writeFlowError renders a service error. Anything that is not a FlowError
// is an internal failure: log the detail, answer generically.
func writeFlowError(w http.ResponseWriter, err error) {
	var flow *services.FlowError
	if errors.As(err, &flow) {
		writeFailure(w, flow.Status, flow.Message, flow.Data)
		return
	}
	log.Printf("handlers: internal error: %v", err)
	writeFailure(w, 500, services.MsgServerError, nil)
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func contextWithUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// accessTokenFrom reads the access token from the cookie or, failing that,
// a bearer Authorization header.
func accessTokenFrom(r *http.Request) string {
	for _, name := range []string{cookieAccessTokenLegacy, cookieAccessToken} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func refreshTokenFrom(r *http.Request) string {
	for _, name := range []string{cookieRefreshToken, cookieRefreshTokenLegacy} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

func setTokenCookie(w http.ResponseWriter, name, value string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearTokenCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// deviceLabel names the session after the calling client.
func deviceLabel(r *http.Request) string {
	ua := strings.TrimSpace(r.UserAgent())
	if ua == "" {
		return "Unknown"
	}
	return ua
}
