package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/biportal/internal/domain"
	"github.com/yourorg/biportal/internal/observability/metrics"
)

// LoginContext captures where a login attempt came from, for the audit
// trail only
type LoginContext struct {
	IPAddress string
	UserAgent string
}

// AuthService resolves login attempts against the credential store
type AuthService struct {
	userRepo  domain.UserRepository
	auditRepo domain.AuditRepository
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo domain.UserRepository,
	auditRepo domain.AuditRepository,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// ResolveByPassword authenticates a local username/password pair.
// Returns domain.ErrInvalidCredentials on any mismatch; the caller
// never learns whether the username exists.
func (s *AuthService) ResolveByPassword(ctx context.Context, username, rawPassword string, lc LoginContext) (*domain.Identity, error) {
	user, err := s.userRepo.GetActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Info("login attempt for unknown or inactive user", slog.String("username", username))
			metrics.ObserveLogin(domain.LoginMethodPassword, "failure")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("resolve by password: %w", err)
	}

	if user.PasswordHash == "" {
		metrics.ObserveLogin(domain.LoginMethodPassword, "failure")
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(rawPassword)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("username", username))
		metrics.ObserveLogin(domain.LoginMethodPassword, "failure")
		return nil, domain.ErrInvalidCredentials
	}

	s.recordLogin(ctx, user, domain.LoginMethodPassword, lc)
	metrics.ObserveLogin(domain.LoginMethodPassword, "success")

	return &domain.Identity{
		Username:       user.Username,
		Role:           user.Role,
		FederatedEmail: user.FederatedEmail,
	}, nil
}

// ResolveByFederatedEmail authenticates a Microsoft-verified email.
// The identity provider has already proven the user owns the address;
// this only checks the address maps to an active local record.
func (s *AuthService) ResolveByFederatedEmail(ctx context.Context, email string, lc LoginContext) (*domain.Identity, error) {
	user, err := s.userRepo.GetActiveByFederatedEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Info("federated login for unmapped email", slog.String("email", email))
			metrics.ObserveLogin(domain.LoginMethodMicrosoft, "failure")
			return nil, domain.ErrNotAuthorized
		}
		return nil, fmt.Errorf("resolve by federated email: %w", err)
	}

	s.recordLogin(ctx, user, domain.LoginMethodMicrosoft, lc)
	metrics.ObserveLogin(domain.LoginMethodMicrosoft, "success")

	username := user.Username
	if username == "" {
		username = user.FederatedEmail
	}

	return &domain.Identity{
		Username:       username,
		Role:           user.Role,
		FederatedEmail: user.FederatedEmail,
	}, nil
}

// recordLogin appends one audit row. An insert failure is logged and
// swallowed: login success must not depend on audit durability.
func (s *AuthService) recordLogin(ctx context.Context, user *domain.User, method string, lc LoginContext) {
	entry := &domain.LoginAudit{
		UserID:    user.ID,
		Method:    method,
		IPAddress: lc.IPAddress,
		UserAgent: lc.UserAgent,
	}

	if err := s.auditRepo.Append(ctx, entry); err != nil {
		metrics.ObserveAuditWriteFailure()
		s.logger.Error("login audit failed",
			slog.String("user_id", user.ID),
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
	}
}
