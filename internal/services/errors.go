package services

import (
	"fmt"

	"github.com/nimbusnote/authserver/types"
)

// Client-facing result messages. The exact strings and the semantic status
// codes paired with them are part of the wire contract consumed by the
// frontend; do not reword them.
const (
	MsgServerError       = "Internal Server Error"
	MsgValidationError   = "Validation Error"
	MsgUserExists        = "User already exists"
	MsgUserRegistered    = "User registered successfully"
	MsgUserNotFound      = "User not found"
	MsgIncorrectPassword = "Incorrect password"
	MsgLoginSuccess      = "Login successful"
	MsgMaxSessions       = "You have reached the maximum number of sessions"
	MsgNoToken           = "No token provided"
	MsgInvalidToken      = "Invalid token"
	MsgUserFound         = "User found"
	MsgUserDeleted       = "Your account is deleted!! Please contact the support team for further assistance."
	MsgUserDisabled      = "Your account is disabled by the admin!! Please contact the support team for further assistance."
	MsgLoggedOut         = "User logged out successfully"
	MsgNoTokenFound      = "No token found"
	MsgTokenExpired      = "Token expired"
	MsgTokenRefreshed    = "Token refreshed"
	MsgTokenActive       = "Token is active"
	MsgResetLinkSent     = "Password reset link sent"
	MsgPasswordReset     = "Password reset successful"
	MsgMissingResetData  = "No token or password provided"
	MsgTooManyAttempts   = "Too many login attempts. Try again later"
)

// FlowError is a non-success flow outcome the client is meant to see. It
// carries the semantic status and message for the response envelope, plus
// an optional data payload. Anything that is not a FlowError is an internal
// failure and is rendered as a generic server error.
type FlowError struct {
	Status  int
	Message string
	Data    any
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func flowErr(status int, message string) *FlowError {
	return &FlowError{Status: status, Message: message}
}

// MaxSessionsData is the affordance payload returned alongside the
// max-sessions rejection: the occupied slots and a short-lived access token
// the client may use to revoke one of them.
type MaxSessionsData struct {
	ValidTokens     []types.SessionEntry `json:"validTokens"`
	TempAccessToken string               `json:"tempAccessToken"`
}

// ResetLinkStatus is the payload of the reset-link liveness probe.
type ResetLinkStatus struct {
	IsActive bool `json:"isActive"`
}
