package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/biportal/internal/domain"
	"github.com/yourorg/biportal/internal/security"
	"github.com/yourorg/biportal/internal/security/audit"
	"github.com/yourorg/biportal/internal/security/middleware"
	"github.com/yourorg/biportal/internal/service"
)

// EmbedConfigRequest selects which client scope to mint a credential for
type EmbedConfigRequest struct {
	ClientKey string `json:"clientKey"`
}

// EmbedConfigHandler handles POST /api/embed-config
type EmbedConfigHandler struct {
	embedService *service.EmbedService
	authz        *security.AuthorizationService
	auditLog     *audit.Logger
	logger       *slog.Logger
}

// NewEmbedConfigHandler creates a new embed config handler
func NewEmbedConfigHandler(
	embedService *service.EmbedService,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *EmbedConfigHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &EmbedConfigHandler{
		embedService: embedService,
		authz:        authz,
		auditLog:     auditLog,
		logger:       logger,
	}
}

// ServeHTTP handles POST /api/embed-config requests
func (h *EmbedConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
		return
	}

	var req EmbedConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request"}`, http.StatusBadRequest)
		return
	}

	if req.ClientKey == "" {
		http.Error(w, `{"error":"clientKey required"}`, http.StatusBadRequest)
		return
	}

	if err := h.authz.ValidateClientAccess(claims.Role, req.ClientKey); err != nil {
		h.auditLog.LogDenied(claims.Username, req.ClientKey, "embed scope not permitted")
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	cred, err := h.embedService.GetEmbedCredential(r.Context(), req.ClientKey)
	if err != nil {
		h.writeExchangeError(w, req.ClientKey, err)
		return
	}

	h.auditLog.LogEmbedIssued(claims.Username, req.ClientKey)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cred); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// exchangeError is the structured error body for failed exchanges. The
// downstream detail is surfaced for diagnostics, not interpreted.
type exchangeError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *EmbedConfigHandler) writeExchangeError(w http.ResponseWriter, clientKey string, err error) {
	h.logger.Error("embed exchange failed",
		slog.String("client_key", clientKey),
		slog.String("error", err.Error()),
	)

	status := http.StatusInternalServerError
	message := "embed credential exchange failed"

	switch {
	case errors.Is(err, domain.ErrUnknownClient):
		status = http.StatusBadRequest
		message = "Unknown clientKey"
	case errors.Is(err, domain.ErrIdentityProviderUnreachable):
		message = "identity provider unreachable"
	case errors.Is(err, domain.ErrCredentialRejected):
		message = "service credential rejected"
	case errors.Is(err, domain.ErrTokenGeneration):
		message = "Failed to generate embed token"
	case errors.Is(err, domain.ErrReportLookup):
		message = "Failed to fetch report details"
	}

	body := exchangeError{Error: message}
	if status == http.StatusInternalServerError {
		body.Detail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
