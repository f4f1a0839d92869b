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

// DataHandler serves the tabular dashboard data routes
type DataHandler struct {
	datasetService *service.DatasetService
	authz          *security.AuthorizationService
	auditLog       *audit.Logger
	logger         *slog.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(
	datasetService *service.DatasetService,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &DataHandler{
		datasetService: datasetService,
		authz:          authz,
		auditLog:       auditLog,
		logger:         logger,
	}
}

// HandleAdmin handles GET /api/data/admin: every client dataset keyed
// by client key. Admin only.
func (h *DataHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
		return
	}

	if err := h.authz.ValidatePermission(claims.Role, security.PermViewAllClients); err != nil {
		h.auditLog.LogDenied(claims.Username, "", "admin data view requires admin role")
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	all, err := h.datasetService.AllClientRows()
	if err != nil {
		h.logger.Error("admin data read failed", slog.String("error", err.Error()))
		http.Error(w, `{"error":"failed to read data directory"}`, http.StatusInternalServerError)
		return
	}

	h.auditLog.LogDataAccess(claims.Username, "*", "ok")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(all); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// HandleClient handles GET /api/data/{client}
func (h *DataHandler) HandleClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
		return
	}

	clientKey := r.PathValue("client")
	if clientKey == "" {
		http.Error(w, `{"error":"missing client key"}`, http.StatusBadRequest)
		return
	}

	if err := h.authz.ValidateClientAccess(claims.Role, clientKey); err != nil {
		h.auditLog.LogDenied(claims.Username, clientKey, "data scope not permitted")
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	rows, err := h.datasetService.RowsForClient(clientKey)
	if err != nil {
		if errors.Is(err, domain.ErrDatasetNotFound) {
			http.Error(w, `{"error":"Client not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("client data read failed",
			slog.String("client_key", clientKey),
			slog.String("error", err.Error()),
		)
		http.Error(w, `{"error":"failed to read client data"}`, http.StatusInternalServerError)
		return
	}

	h.auditLog.LogDataAccess(claims.Username, clientKey, "ok")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
