package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/biportal/internal/domain"
	"github.com/yourorg/biportal/internal/security"
	"github.com/yourorg/biportal/internal/security/audit"
	"github.com/yourorg/biportal/internal/security/auth"
	"github.com/yourorg/biportal/internal/security/middleware"
	"github.com/yourorg/biportal/internal/service"
	"github.com/yourorg/biportal/pkg/config"
)

type stubTokenClient struct {
	calls      int
	acquireErr error
}

func (s *stubTokenClient) AcquireToken(_ context.Context) (string, error) {
	s.calls++
	if s.acquireErr != nil {
		return "", s.acquireErr
	}
	return "bearer", nil
}

func (s *stubTokenClient) GenerateEmbedToken(_ context.Context, _, _, reportID string) (string, time.Time, error) {
	s.calls++
	return "embed-token", time.Now().Add(time.Hour), nil
}

func (s *stubTokenClient) GetReportDetails(_ context.Context, _, _, reportID string) (string, error) {
	s.calls++
	return "https://embed.example/" + reportID, nil
}

func embedRequest(t *testing.T, body, role, clientKey string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/embed-config", strings.NewReader(body))
	if role != "" {
		claims := &auth.Claims{Username: "tester", Role: role, ClientKey: clientKey}
		ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey{}, claims)
		req = req.WithContext(ctx)
	}
	return req
}

func newEmbedHandler(client *stubTokenClient) *EmbedConfigHandler {
	scopes := map[string]config.Scope{
		"CLIENTA": {WorkspaceID: "ws-a", ReportID: "rep-a"},
	}
	embedService := service.NewEmbedService(scopes, client, nil)
	return NewEmbedConfigHandler(embedService, security.NewAuthorizationService(nil), audit.NewLogger(nil), nil)
}

func TestEmbedConfig(t *testing.T) {
	client := &stubTokenClient{}
	h := newEmbedHandler(client)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, embedRequest(t, `{"clientKey":"CLIENTA"}`, "clienta", "CLIENTA"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var cred domain.EmbedCredential
	if err := json.NewDecoder(rec.Body).Decode(&cred); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if cred.ReportID != "rep-a" || cred.WorkspaceID != "ws-a" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	if cred.EmbedToken != "embed-token" {
		t.Fatalf("unexpected token %q", cred.EmbedToken)
	}
}

func TestEmbedConfigUnknownClient(t *testing.T) {
	client := &stubTokenClient{}
	h := newEmbedHandler(client)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, embedRequest(t, `{"clientKey":"UNKNOWNKEY"}`, "admin", ""))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if client.calls != 0 {
		t.Fatalf("expected zero outbound calls for unknown key, got %d", client.calls)
	}
}

func TestEmbedConfigForbiddenScope(t *testing.T) {
	client := &stubTokenClient{}
	h := newEmbedHandler(client)

	// clientb role asking for CLIENTA's report
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, embedRequest(t, `{"clientKey":"CLIENTA"}`, "clientb", "CLIENTB"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if client.calls != 0 {
		t.Fatalf("expected zero outbound calls when forbidden, got %d", client.calls)
	}
}

func TestEmbedConfigExchangeFailure(t *testing.T) {
	client := &stubTokenClient{acquireErr: domain.ErrCredentialRejected}
	h := newEmbedHandler(client)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, embedRequest(t, `{"clientKey":"CLIENTA"}`, "admin", ""))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body exchangeError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error != "service credential rejected" {
		t.Fatalf("unexpected error body: %+v", body)
	}
	if body.Detail == "" {
		t.Fatalf("expected failure detail for diagnostics")
	}
}

func TestEmbedConfigRequiresSession(t *testing.T) {
	h := newEmbedHandler(&stubTokenClient{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, embedRequest(t, `{"clientKey":"CLIENTA"}`, "", ""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
