package security

import (
	"fmt"
	"log/slog"
	"strings"
)

// Role names. Every role other than admin is a client role whose name
// matches its client key lower-cased (role "clienta" -> key "CLIENTA").
const RoleAdmin = "admin"

// Permission represents an action permission
type Permission string

const (
	PermViewOwnClient   Permission = "view_own_client"
	PermViewAllClients  Permission = "view_all_clients"
	PermViewAuditStream Permission = "view_audit_stream"
)

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{logger: logger}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role string, permission Permission) bool {
	switch permission {
	case PermViewOwnClient:
		return role != ""
	case PermViewAllClients, PermViewAuditStream:
		return role == RoleAdmin
	default:
		return false
	}
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role string, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", role),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("permission denied: %s role cannot %s", role, permission)
	}
	return nil
}

// ValidateClientAccess checks whether a role may view a client scope.
// Admins may view any scope; a client role only its own.
func (as *AuthorizationService) ValidateClientAccess(role, clientKey string) error {
	if role == RoleAdmin {
		return nil
	}
	if strings.EqualFold(role, clientKey) {
		return nil
	}
	as.logger.Warn("client scope access denied",
		slog.String("role", role),
		slog.String("client_key", clientKey),
	)
	return fmt.Errorf("role %s cannot view client %s", role, clientKey)
}

// ClientKeyForRole returns the single client key a non-admin role is
// entitled to. Admins have no fixed key.
func ClientKeyForRole(role string) string {
	if role == RoleAdmin {
		return ""
	}
	return strings.ToUpper(role)
}
