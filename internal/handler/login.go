package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/biportal/internal/domain"
	"github.com/yourorg/biportal/internal/security"
	"github.com/yourorg/biportal/internal/security/audit"
	"github.com/yourorg/biportal/internal/security/auth"
	"github.com/yourorg/biportal/internal/security/middleware"
	"github.com/yourorg/biportal/internal/service"
)

// PasswordLoginRequest represents local credentials
type PasswordLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MicrosoftLoginRequest carries the email the identity provider verified
type MicrosoftLoginRequest struct {
	FederatedEmail string `json:"federatedEmail"`
}

// LoginResponse is returned by both login routes
type LoginResponse struct {
	Username         string    `json:"username"`
	Role             string    `json:"role"`
	FederatedEmail   string    `json:"federatedEmail,omitempty"`
	DefaultClientKey string    `json:"defaultClientKey,omitempty"`
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// LoginHandler handles both authentication routes
type LoginHandler struct {
	authService     *service.AuthService
	tokenManager    *auth.TokenManager
	auditLog        *audit.Logger
	adminDefaultKey string
	sessionDuration time.Duration
	logger          *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(
	authService *service.AuthService,
	tm *auth.TokenManager,
	auditLog *audit.Logger,
	adminDefaultKey string,
	logger *slog.Logger,
) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoginHandler{
		authService:     authService,
		tokenManager:    tm,
		auditLog:        auditLog,
		adminDefaultKey: adminDefaultKey,
		sessionDuration: 8 * time.Hour,
		logger:          logger,
	}
}

// HandlePassword handles POST /api/auth/login-password
func (h *LoginHandler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PasswordLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode login request", slog.String("error", err.Error()))
		http.Error(w, `{"error":"invalid request"}`, http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, `{"error":"username and password required"}`, http.StatusBadRequest)
		return
	}

	identity, err := h.authService.ResolveByPassword(r.Context(), req.Username, req.Password, loginContext(r))
	if err != nil {
		h.auditLog.LogLogin(req.Username, domain.LoginMethodPassword, "failure")
		if errors.Is(err, domain.ErrInvalidCredentials) {
			// Generic error to prevent user enumeration
			http.Error(w, `{"error":"Invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		h.logger.Error("password login error", slog.String("error", err.Error()))
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.auditLog.LogLogin(identity.Username, domain.LoginMethodPassword, "success")
	h.respond(w, identity)
}

// HandleMicrosoft handles POST /api/auth/login-microsoft. The MSAL
// redirect happens entirely in the browser; by the time this is called
// the identity provider has already verified the email.
func (h *LoginHandler) HandleMicrosoft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MicrosoftLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode microsoft login request", slog.String("error", err.Error()))
		http.Error(w, `{"error":"invalid request"}`, http.StatusBadRequest)
		return
	}

	if req.FederatedEmail == "" {
		http.Error(w, `{"error":"federatedEmail required"}`, http.StatusBadRequest)
		return
	}

	identity, err := h.authService.ResolveByFederatedEmail(r.Context(), req.FederatedEmail, loginContext(r))
	if err != nil {
		h.auditLog.LogLogin(req.FederatedEmail, domain.LoginMethodMicrosoft, "failure")
		if errors.Is(err, domain.ErrNotAuthorized) {
			http.Error(w, `{"error":"User not authorized"}`, http.StatusUnauthorized)
			return
		}
		h.logger.Error("microsoft login error", slog.String("error", err.Error()))
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.auditLog.LogLogin(identity.Username, domain.LoginMethodMicrosoft, "success")
	h.respond(w, identity)
}

func (h *LoginHandler) respond(w http.ResponseWriter, identity *domain.Identity) {
	clientKey := security.ClientKeyForRole(identity.Role)

	token, err := h.tokenManager.GenerateToken(identity.Username, identity.Role, clientKey, h.sessionDuration)
	if err != nil {
		h.logger.Error("failed to generate session token",
			slog.String("username", identity.Username),
			slog.String("error", err.Error()),
		)
		http.Error(w, `{"error":"token generation failed"}`, http.StatusInternalServerError)
		return
	}

	defaultKey := clientKey
	if identity.Role == security.RoleAdmin {
		defaultKey = h.adminDefaultKey
	}

	response := LoginResponse{
		Username:         identity.Username,
		Role:             identity.Role,
		FederatedEmail:   identity.FederatedEmail,
		DefaultClientKey: defaultKey,
		Token:            token,
		ExpiresAt:        time.Now().Add(h.sessionDuration),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func loginContext(r *http.Request) service.LoginContext {
	return service.LoginContext{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
