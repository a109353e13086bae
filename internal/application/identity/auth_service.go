// Package identity orchestrates login, session resolution, tenant switching and logout on
// top of the session registry and the token service.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/saasfilter/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// Auth errors surfaced to clients
var (
	ErrTokenInvalid = shared.NewDomainError("UNAUTHORIZED", "Invalid or expired token")
	ErrTokenRevoked = shared.NewDomainError("UNAUTHORIZED", "Token has been revoked")
)

// FailureRecorder receives the outcomes that never reach the session store as events
type FailureRecorder interface {
	RecordLoginFailure(ctx context.Context, code string)
	RecordTenantSwitch(ctx context.Context, tenant string, allowed bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordLoginFailure(context.Context, string) {}
func (nopRecorder) RecordTenantSwitch(context.Context, string, bool) {}

// AuthService handles authentication operations
type AuthService struct {
	directory identity.Directory
	sessions  *session.Registry
	tokens    *auth.JWTService
	blacklist auth.TokenBlacklist
	recorder  FailureRecorder
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService. blacklist and recorder may be nil.
func NewAuthService(
	directory identity.Directory,
	sessions *session.Registry,
	tokens *auth.JWTService,
	blacklist auth.TokenBlacklist,
	recorder FailureRecorder,
	logger *zap.Logger,
) *AuthService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		directory: directory,
		sessions:  sessions,
		tokens:    tokens,
		blacklist: blacklist,
		recorder:  recorder,
		logger:    logger,
	}
}

// Login authenticates by email, opens a session with the identity's first tenant active and
// issues the bearer token bound to it.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.TrimSpace(input.Email)
	s.logger.Info("Login attempt", zap.String("email", email), zap.String("ip", input.IP))

	id, err := s.directory.Authenticate(ctx, email)
	if err != nil {
		s.recordFailure(ctx, err)
		s.logger.Info("Login failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	store := s.sessions.Create()
	if err := store.Login(ctx, id); err != nil {
		s.sessions.Remove(store.ID())
		s.recordFailure(ctx, err)
		return nil, err
	}

	token, err := s.tokens.Issue(store.ID(), id.ID(), id.Role().String())
	if err != nil {
		store.Logout(ctx)
		s.sessions.Remove(store.ID())
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.sessions.ExpireAt(store.ID(), token.ExpiresAt)

	s.logger.Info("User logged in",
		zap.Int64("user_id", id.ID()),
		zap.String("session_id", store.ID().String()),
		zap.String("role", id.Role().String()),
	)

	return &LoginResult{
		AccessToken: token.Token,
		ExpiresAt:   token.ExpiresAt,
		TokenType:   "Bearer",
		Session:     ToSessionInfo(store.CurrentState()),
	}, nil
}

// Resolve validates a bearer token and returns the session it is bound to
func (s *AuthService) Resolve(ctx context.Context, token string) (*session.Store, *auth.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, nil, ErrTokenInvalid
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
		if err != nil {
			// fail open
			s.logger.Warn("Token blacklist check failed", zap.Error(err))
		} else if revoked {
			return nil, nil, ErrTokenRevoked
		}
	}

	sid, err := claims.Session()
	if err != nil {
		return nil, nil, ErrTokenInvalid
	}
	store, err := s.sessions.Get(sid)
	if err != nil {
		return nil, nil, err
	}
	if !store.CurrentState().Authenticated() {
		return nil, nil, session.ErrSessionNotFound
	}
	return store, claims, nil
}

// Logout revokes the token and destroys its session. Repeating it is harmless.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}

	if s.blacklist != nil && claims.ID != "" {
		if ttl := claims.RemainingTTL(); ttl > 0 {
			if err := s.blacklist.Revoke(ctx, claims.ID, ttl); err != nil {
				s.logger.Warn("Failed to revoke token", zap.String("jti", claims.ID), zap.Error(err))
			}
		}
	}

	sid, err := claims.Session()
	if err != nil {
		return nil
	}
	store, err := s.sessions.Get(sid)
	if err != nil {
		return nil
	}
	store.Logout(ctx)
	s.sessions.Remove(sid)

	s.logger.Info("User logged out",
		zap.Int64("user_id", claims.UserID),
		zap.String("session_id", sid.String()),
	)
	return nil
}

// SwitchTenant asks the store to activate tenant. An ungranted tenant is not an error: the
// result reports Switched=false and the unchanged session.
func (s *AuthService) SwitchTenant(ctx context.Context, store *session.Store, raw string) *SwitchResult {
	tenant := identity.TenantID(strings.TrimSpace(raw))

	switched := store.SwitchTenant(ctx, tenant)
	if !switched {
		s.recorder.RecordTenantSwitch(ctx, tenant.String(), false)
		s.logger.Warn("Tenant switch refused",
			zap.String("session_id", store.ID().String()),
			zap.String("tenant_id", tenant.String()),
		)
	}
	return &SwitchResult{
		Switched: switched,
		Session:  ToSessionInfo(store.CurrentState()),
	}
}

// CanAccess reports whether the session's identity passes the gate for required
func (s *AuthService) CanAccess(store *session.Store, required identity.Role) bool {
	return identity.CanAccess(store.CurrentState().Identity, required)
}

func (s *AuthService) recordFailure(ctx context.Context, err error) {
	code := shared.CodeOf(err)
	if code == "" {
		code = "INTERNAL"
	}
	s.recorder.RecordLoginFailure(ctx, code)
}
