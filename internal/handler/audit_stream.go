package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/biportal/internal/security"
	"github.com/yourorg/biportal/internal/security/audit"
	"github.com/yourorg/biportal/internal/security/auth"
)

// AuditStreamHandler streams live audit events to admin sessions over
// a WebSocket. The session token travels as a query parameter since
// browser WebSocket clients cannot set headers.
type AuditStreamHandler struct {
	auditLog       *audit.Logger
	tokenManager   *auth.TokenManager
	authz          *security.AuthorizationService
	allowedOrigins []string
	logger         *slog.Logger
}

// NewAuditStreamHandler creates a new audit stream handler
func NewAuditStreamHandler(
	auditLog *audit.Logger,
	tm *auth.TokenManager,
	authz *security.AuthorizationService,
	allowedOrigins []string,
	logger *slog.Logger,
) *AuditStreamHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuditStreamHandler{
		auditLog:       auditLog,
		tokenManager:   tm,
		authz:          authz,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// upgrader is built per-request to use the instance's allowed origins
func (h *AuditStreamHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/audit
func (h *AuditStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenManager.ValidateToken(tokenString)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	if err := h.authz.ValidatePermission(claims.Role, security.PermViewAuditStream); err != nil {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	events, cancel := h.auditLog.Subscribe()
	defer cancel()

	h.logger.Info("audit stream opened", slog.String("username", claims.Username))

	// Heartbeat ping keeps intermediaries from dropping idle streams
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteJSON(event); err != nil {
				h.logger.Debug("audit stream ended", slog.String("reason", err.Error()))
				return
			}
		}
	}
}
