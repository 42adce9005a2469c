package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nimbusnote/authserver/internal/services"
	"github.com/nimbusnote/authserver/internal/token"
	"github.com/nimbusnote/authserver/types"
)

// AuthHandler provides the credential and session lifecycle endpoints.
type AuthHandler struct {
	svc           *services.AuthService
	codec         *token.Codec
	secureCookies bool
}

// NewAuthHandler constructs an AuthHandler. secureCookies should be false
// only in local development over plain HTTP.
func NewAuthHandler(svc *services.AuthService, codec *token.Codec, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		codec:         codec,
		secureCookies: secureCookies,
	}
}

// AuthRouter registers the auth routes on the given router.
func AuthRouter(r chi.Router, svc *services.AuthService, codec *token.Codec, secureCookies bool) {
	handler := NewAuthHandler(svc, codec, secureCookies)
	guard := NewGuard(codec, svc)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/continue-external", handler.ExternalLogin)
	r.With(guard.RequireAccess).Post("/logout", handler.Logout)
	r.With(guard.RequireRefresh).Post("/refresh", handler.Refresh)
	r.With(guard.RequireAccess).Get("/user", handler.GetUser)
	r.Post("/reset", handler.RequestPasswordReset)
	r.Get("/reset/{token}", handler.CheckResetLink)
	r.Post("/reset/{token}", handler.PerformPasswordReset)
}

// Recognition identifies an account by exactly one of email or username.
type Recognition struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

type RegisterRequest struct {
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	Name            types.Name `json:"name"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirmPassword"`
}

type LoginRequest struct {
	Recognition Recognition `json:"recognition"`
	Password    string      `json:"password"`
}

type ExternalLoginRequest struct {
	Credential string `json:"credential"`
}

type ResetRequest struct {
	Recognition Recognition `json:"recognition"`
}

type PerformResetRequest struct {
	Password       string `json:"password"`
	RevokeSessions bool   `json:"revokeSessions"`
}

// LoginData is the success payload of login and external login.
type LoginData struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         types.PublicUser `json:"user"`
	ExpiresIn    time.Time        `json:"expiresIn"`
}

// RefreshData is the success payload of the refresh flow.
type RefreshData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates a new account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, 400, services.MsgValidationError, nil)
		return
	}
	if err := validateRegister(req); err != nil {
		writeFailure(w, 400, err.Error(), nil)
		return
	}

	public, err := h.svc.Register(r.Context(), services.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeSuccess(w, 201, services.MsgUserRegistered, public)
}

// Login authenticates the account and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, 400, services.MsgValidationError, nil)
		return
	}
	if err := validateLogin(req); err != nil {
		writeFailure(w, 400, err.Error(), nil)
		return
	}

	result, err := h.svc.Login(r.Context(), services.LoginInput{
		Email:      req.Recognition.Email,
		Username:   req.Recognition.Username,
		Password:   req.Password,
		DeviceName: deviceLabel(r),
	})
	if err != nil {
		writeFlowError(w, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

// ExternalLogin authenticates through an external identity provider.
func (h *AuthHandler) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	var req ExternalLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Credential == "" {
		writeFailure(w, 400, services.MsgValidationError, nil)
		return
	}

	result, _, err := h.svc.ExternalLogin(r.Context(), req.Credential, deviceLabel(r))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

func (h *AuthHandler) writeLoginSuccess(w http.ResponseWriter, result *services.LoginResult) {
	setTokenCookie(w, cookieAccessToken, result.AccessToken, h.codec.AccessTTL(), h.secureCookies)
	setTokenCookie(w, cookieRefreshToken, result.RefreshToken, h.codec.RefreshTTL(), h.secureCookies)
	writeSuccess(w, 200, services.MsgLoginSuccess, LoginData{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         result.User,
		ExpiresIn:    result.ExpiresAt,
	})
}

// Logout revokes the calling device's session. Cookies are cleared
// unconditionally; every path answers success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w, cookieAccessToken, h.secureCookies)
	clearTokenCookie(w, cookieRefreshToken, h.secureCookies)

	user, ok := userFromContext(r.Context())
	if !ok {
		writeSuccess(w, 200, services.MsgLoggedOut, nil)
		return
	}

	if err := h.svc.Logout(r.Context(), user.ID, refreshTokenFrom(r)); err != nil {
		writeFlowError(w, err)
		return
	}
	writeSuccess(w, 200, services.MsgLoggedOut, nil)
}

// Refresh rotates the access token for the session named by the refresh
// cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeGuardFailure(w, statusNoToken, services.MsgNoToken)
		return
	}

	refreshToken := refreshTokenFrom(r)
	accessToken, err := h.svc.Refresh(r.Context(), user, refreshToken)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	setTokenCookie(w, cookieAccessToken, accessToken, h.codec.AccessTTL(), h.secureCookies)
	writeSuccess(w, 200, services.MsgTokenRefreshed, RefreshData{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// GetUser returns the authenticated account's public profile.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeGuardFailure(w, statusNoToken, services.MsgNoToken)
		return
	}

	public, err := h.svc.GetUser(r.Context(), user.ID)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeSuccess(w, 200, services.MsgUserFound, public)
}

// RequestPasswordReset mints and mails a reset link.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, 400, services.MsgValidationError, nil)
		return
	}
	if err := validateRecognition(req.Recognition); err != nil {
		writeFailure(w, 400, err.Error(), nil)
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Recognition.Email, req.Recognition.Username); err != nil {
		writeFlowError(w, err)
		return
	}
	writeSuccess(w, 200, services.MsgResetLinkSent, nil)
}

// CheckResetLink probes whether a reset link is still usable.
func (h *AuthHandler) CheckResetLink(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CheckResetLink(r.Context(), chi.URLParam(r, "token")); err != nil {
		writeFlowError(w, err)
		return
	}
	writeSuccess(w, 200, services.MsgTokenActive, services.ResetLinkStatus{IsActive: true})
}

// PerformPasswordReset consumes a reset link and sets the new password.
func (h *AuthHandler) PerformPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PerformResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, 400, services.MsgValidationError, nil)
		return
	}

	err := h.svc.PerformPasswordReset(r.Context(), chi.URLParam(r, "token"), req.Password, req.RevokeSessions)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeSuccess(w, 200, services.MsgPasswordReset, nil)
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, 200, "OK", nil)
}
