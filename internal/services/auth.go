package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nimbusnote/authserver/internal/notify"
	"github.com/nimbusnote/authserver/internal/password"
	"github.com/nimbusnote/authserver/internal/rate"
	"github.com/nimbusnote/authserver/internal/sessions"
	"github.com/nimbusnote/authserver/internal/store"
	"github.com/nimbusnote/authserver/internal/token"
	"github.com/nimbusnote/authserver/types"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmailOrUsername(ctx context.Context, email, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// TicketRepository persists reset-link tickets.
type TicketRepository interface {
	Upsert(ctx context.Context, userID, purpose, tokenString string, expiresAt time.Time) error
	GetByToken(ctx context.Context, tokenString, purpose string) (store.Ticket, error)
}

// ResetApplier commits a password reset atomically: new hash, ticket
// consumed, sessions optionally revoked.
type ResetApplier interface {
	Apply(ctx context.Context, userID, passwordHash, ticketID string, revokeSessions bool) error
}

// LoginLimiter throttles login attempts per account.
type LoginLimiter interface {
	Check(ctx context.Context, identifier string) error
	Increment(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

// ExternalIdentity is the profile asserted by an external identity
// provider after credential verification.
type ExternalIdentity struct {
	Email      string
	GivenName  string
	FamilyName string
}

// ExternalIdentityVerifier exchanges a provider credential for a verified
// profile.
type ExternalIdentityVerifier interface {
	Verify(ctx context.Context, credential string) (ExternalIdentity, error)
}

// AuthDeps carries the collaborators of AuthService. Limiter, External and
// Notifier may be nil; the corresponding behavior is skipped.
type AuthDeps struct {
	Users       UserRepository
	Sessions    *sessions.Store
	Tickets     TicketRepository
	Resets      ResetApplier
	Codec       *token.Codec
	Limiter     LoginLimiter
	External    ExternalIdentityVerifier
	Notifier    *notify.Notifier
	FrontendURL string
}

// AuthService implements the credential and session lifecycle flows.
type AuthService struct {
	users       UserRepository
	sessions    *sessions.Store
	tickets     TicketRepository
	resets      ResetApplier
	codec       *token.Codec
	limiter     LoginLimiter
	external    ExternalIdentityVerifier
	notifier    *notify.Notifier
	frontendURL string
}

func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		users:       deps.Users,
		sessions:    deps.Sessions,
		tickets:     deps.Tickets,
		resets:      deps.Resets,
		codec:       deps.Codec,
		limiter:     deps.Limiter,
		external:    deps.External,
		notifier:    deps.Notifier,
		frontendURL: deps.FrontendURL,
	}
}

// RegisterInput is the payload of a registration request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Name     types.Name
}

// Register creates a new unverified account. Uniqueness is checked email
// first, then username; either collision reports the same conflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.PublicUser, error) {
	_, err := s.users.GetByEmail(ctx, in.Email)
	if err == nil {
		return types.PublicUser{}, flowErr(400, MsgUserExists)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.PublicUser{}, err
	}

	_, err = s.users.GetByUsername(ctx, in.Username)
	if err == nil {
		return types.PublicUser{}, flowErr(400, MsgUserExists)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.PublicUser{}, err
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return types.PublicUser{}, err
	}

	created, err := s.users.Create(ctx, types.User{
		Email:        in.Email,
		Username:     in.Username,
		Name:         in.Name,
		Role:         types.RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		// A concurrent registration can win the race between the
		// lookup and the insert.
		if errors.Is(err, store.ErrConflict) {
			return types.PublicUser{}, flowErr(400, MsgUserExists)
		}
		return types.PublicUser{}, err
	}

	s.notifier.Welcome(ctx, created.ID, created.Email, created.Name.First)
	return created.Public(), nil
}

// LoginInput identifies the account by email or username, exclusively.
type LoginInput struct {
	Email      string
	Username   string
	Password   string
	DeviceName string
}

// LoginResult is the successful session establishment outcome.
type LoginResult struct {
	User         types.PublicUser
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Login authenticates the account and admits a new session. Account state
// is checked in a fixed order so each failure mode keeps its own status:
// unknown account, deleted, disabled, then bad password.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	var user types.User
	var err error
	if in.Email != "" {
		user, err = s.users.GetByEmail(ctx, in.Email)
	} else {
		user, err = s.users.GetByUsername(ctx, in.Username)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, flowErr(404, MsgUserNotFound)
		}
		return nil, err
	}
	if err := accountUsable(user); err != nil {
		return nil, err
	}

	if err := s.checkLimiter(ctx, user.ID); err != nil {
		return nil, err
	}

	if !password.Verify(in.Password, user.PasswordHash) {
		s.recordFailedAttempt(ctx, user.ID)
		return nil, flowErr(401, MsgIncorrectPassword)
	}
	s.clearAttempts(ctx, user.ID)

	result, err := s.establishSession(ctx, user, in.DeviceName)
	if err != nil {
		return nil, err
	}
	s.notifier.LoginAlert(ctx, user.ID, user.Email, in.DeviceName)
	return result, nil
}

// ExternalLogin authenticates through an external identity provider,
// provisioning a verified account on first contact. Reports whether the
// account was created by this call.
func (s *AuthService) ExternalLogin(ctx context.Context, credential, deviceName string) (*LoginResult, bool, error) {
	if s.external == nil {
		return nil, false, errors.New("external identity provider not configured")
	}
	identity, err := s.external.Verify(ctx, credential)
	if err != nil {
		return nil, false, fmt.Errorf("verify external credential: %w", err)
	}

	newUser := false
	user, err := s.users.GetByEmail(ctx, identity.Email)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.provisionExternalUser(ctx, identity)
		newUser = true
	}
	if err != nil {
		return nil, false, err
	}
	if err := accountUsable(user); err != nil {
		return nil, false, err
	}

	result, err := s.establishSession(ctx, user, deviceName)
	if err != nil {
		return nil, false, err
	}
	if newUser {
		s.notifier.Welcome(ctx, user.ID, user.Email, user.Name.First)
	}
	s.notifier.LoginAlert(ctx, user.ID, user.Email, deviceName)
	return result, newUser, nil
}

func (s *AuthService) provisionExternalUser(ctx context.Context, identity ExternalIdentity) (types.User, error) {
	suffix, err := token.UsernameSuffix()
	if err != nil {
		return types.User{}, err
	}
	plaintext, err := token.RandomPassword(16)
	if err != nil {
		return types.User{}, err
	}
	hash, err := password.Hash(plaintext)
	if err != nil {
		return types.User{}, err
	}

	username := strings.ToLower(identity.GivenName + identity.FamilyName + suffix)
	return s.users.Create(ctx, types.User{
		Email:        identity.Email,
		Username:     username,
		Name:         types.Name{First: identity.GivenName, Last: identity.FamilyName},
		Role:         types.RoleUser,
		PasswordHash: hash,
		Verified:     true,
	})
}

// establishSession mints the token pair, prunes the account's session list
// and admits the new entry. Tokens are minted before the capacity check so
// the rejection can include a short-lived access token for remote revocation.
func (s *AuthService) establishSession(ctx context.Context, user types.User, deviceName string) (*LoginResult, error) {
	accessToken, err := s.codec.SignAccess(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.codec.SignRefresh(user)
	if err != nil {
		return nil, err
	}

	pruned, err := s.sessions.Load(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entry := sessions.NewEntry(accessToken, refreshToken, deviceName, now.Add(s.codec.AccessTTL()), now)
	admitted, err := sessions.Admit(pruned, entry)
	if err != nil {
		if errors.Is(err, sessions.ErrMaxSessions) {
			return nil, &FlowError{
				Status:  403,
				Message: MsgMaxSessions,
				Data: MaxSessionsData{
					ValidTokens:     pruned,
					TempAccessToken: accessToken,
				},
			}
		}
		return nil, err
	}

	if err := s.sessions.Persist(ctx, user.ID, admitted); err != nil {
		return nil, err
	}

	return &LoginResult{
		User:         user.Public(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    entry.ExpiresAt,
	}, nil
}

// Refresh rotates the access token of the session matching refreshToken.
// The refresh token and its expiry are kept; only the access token, the
// session id and the last-used stamp change. An expired entry is removed
// before the rejection is reported.
func (s *AuthService) Refresh(ctx context.Context, user types.User, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", flowErr(400, MsgNoToken)
	}

	entries, err := s.sessions.LoadAll(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", flowErr(400, MsgNoTokenFound)
	}

	entry, ok := sessions.Find(entries, refreshToken)
	if !ok {
		return "", flowErr(400, MsgInvalidToken)
	}

	now := time.Now()
	if entry.Expired(now) {
		remaining := sessions.Revoke(entries, refreshToken)
		if err := s.sessions.Persist(ctx, user.ID, remaining); err != nil {
			return "", err
		}
		return "", flowErr(400, MsgTokenExpired)
	}

	accessToken, err := s.codec.SignAccess(user)
	if err != nil {
		return "", err
	}
	rotated, ok := sessions.Rotate(entries, refreshToken, accessToken, now)
	if !ok {
		return "", flowErr(400, MsgInvalidToken)
	}
	if err := s.sessions.Persist(ctx, user.ID, rotated); err != nil {
		return "", err
	}
	return accessToken, nil
}

// Logout removes the session matching refreshToken. Every path succeeds:
// a missing token, a missing session document, or an unmatched entry all
// leave the account logged out.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	entries, err := s.sessions.LoadAll(ctx, userID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return s.sessions.Persist(ctx, userID, sessions.Revoke(entries, refreshToken))
}

// RequestPasswordReset mints a reset token for the account identified by
// email or username, records it in the ticket ledger and mails the link.
// Re-requesting overwrites the previous ticket, invalidating its link.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, username string) error {
	user, err := s.users.GetByEmailOrUsername(ctx, email, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return flowErr(404, MsgUserNotFound)
		}
		return err
	}
	if err := accountUsable(user); err != nil {
		return err
	}

	resetToken, err := s.codec.SignReset(user)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.codec.ResetTTL())
	if err := s.tickets.Upsert(ctx, user.ID, token.PurposePasswordReset, resetToken, expiresAt); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset/%s", s.frontendURL, resetToken)
	s.notifier.PasswordResetLink(ctx, user.ID, user.Email, link)
	return nil
}

// CheckResetLink probes whether a reset link is still usable without
// consuming it.
func (s *AuthService) CheckResetLink(ctx context.Context, tokenString string) error {
	ticket, err := s.tickets.GetByToken(ctx, tokenString, token.PurposePasswordReset)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return flowErr(404, MsgNoTokenFound)
		}
		return err
	}
	if time.Now().After(ticket.ExpiresAt) {
		return &FlowError{
			Status:  403,
			Message: MsgTokenExpired,
			Data:    ResetLinkStatus{IsActive: false},
		}
	}
	return s.resetOwnerUsable(ctx, ticket.UserID)
}

// PerformPasswordReset consumes a reset link: the token is verified
// cryptographically, resolved against the ledger, and then the password
// update, ticket deletion and optional session revocation commit in one
// transaction.
func (s *AuthService) PerformPasswordReset(ctx context.Context, tokenString, newPassword string, revokeSessions bool) error {
	if tokenString == "" || newPassword == "" {
		return flowErr(404, MsgMissingResetData)
	}

	payload, err := s.codec.VerifyReset(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrResetTokenExpired) {
			return flowErr(403, MsgTokenExpired)
		}
		return flowErr(404, MsgInvalidToken)
	}

	ticket, err := s.tickets.GetByToken(ctx, tokenString, token.PurposePasswordReset)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return flowErr(404, MsgInvalidToken)
		}
		return err
	}
	if time.Now().After(ticket.ExpiresAt) {
		return flowErr(403, MsgTokenExpired)
	}
	if ticket.UserID != payload.UserID {
		return flowErr(404, MsgInvalidToken)
	}
	if err := s.resetOwnerUsable(ctx, ticket.UserID); err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.resets.Apply(ctx, ticket.UserID, hash, ticket.ID, revokeSessions); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return flowErr(401, MsgUserNotFound)
		}
		return err
	}

	user, err := s.users.GetByID(ctx, ticket.UserID)
	if err == nil {
		s.notifier.PasswordChanged(ctx, user.ID, user.Email)
	}
	return nil
}

// GetUser returns the public projection of an account.
func (s *AuthService) GetUser(ctx context.Context, userID string) (types.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.PublicUser{}, flowErr(404, MsgUserNotFound)
		}
		return types.PublicUser{}, err
	}
	return user.Public(), nil
}

// accountUsable maps the account state flags to their flow errors, deleted
// taking precedence over disabled.
func accountUsable(user types.User) error {
	if user.Deleted {
		return flowErr(402, MsgUserDeleted)
	}
	if user.Disabled {
		return flowErr(405, MsgUserDisabled)
	}
	return nil
}

// resetOwnerUsable re-checks the ticket owner's account. A vanished owner
// is an unauthorized reset, not a plain not-found.
func (s *AuthService) resetOwnerUsable(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return flowErr(401, MsgUserNotFound)
		}
		return err
	}
	return accountUsable(user)
}

// Limiter helpers fail open: a throttle backend outage must not lock every
// account out.

func (s *AuthService) checkLimiter(ctx context.Context, userID string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(ctx, userID)
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		return flowErr(429, MsgTooManyAttempts)
	}
	log.Printf("services: login limiter check: %v", err)
	return nil
}

func (s *AuthService) recordFailedAttempt(ctx context.Context, userID string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Increment(ctx, userID); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		log.Printf("services: login limiter increment: %v", err)
	}
}

func (s *AuthService) clearAttempts(ctx context.Context, userID string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, userID); err != nil {
		log.Printf("services: login limiter reset: %v", err)
	}
}
