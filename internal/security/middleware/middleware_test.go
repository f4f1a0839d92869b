package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/biportal/internal/security/auth"
	"github.com/yourorg/biportal/internal/security/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddlewareRejectsMissingToken(t *testing.T) {
	tm := auth.NewTokenManager("secret", "")
	h := SessionMiddleware(tm, slog.Default())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/embed-config", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionMiddlewareAcceptsValidToken(t *testing.T) {
	tm := auth.NewTokenManager("secret", "")
	token, err := tm.GenerateToken("alice", "clienta", "CLIENTA", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var gotClaims *auth.Claims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := SessionMiddleware(tm, slog.Default())(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/data/CLIENTA", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotClaims == nil || gotClaims.Username != "alice" {
		t.Fatalf("expected claims in context, got %+v", gotClaims)
	}
}

func TestSessionMiddlewareSkipsPublicPaths(t *testing.T) {
	tm := auth.NewTokenManager("secret", "")
	h := SessionMiddleware(tm, slog.Default())(okHandler())

	for _, path := range []string{"/health", "/metrics", "/api/auth/login-password"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected %s to be public, got %d", path, rec.Code)
		}
	}
}

func TestLoginRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewWindowLimiter(2, time.Minute)
	defer limiter.Stop()
	h := LoginRateLimitMiddleware(limiter, slog.Default())(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login-password", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d should pass, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login-password", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	// Non-login routes are not throttled
	req = httptest.NewRequest(http.MethodGet, "/api/data/CLIENTA", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("non-login route should pass, got %d", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"http://localhost:3000"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/embed-config", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestValidateJSONContentType(t *testing.T) {
	h := ValidateJSONContentType(slog.Default())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/embed-config", strings.NewReader(`{"clientKey":"CLIENTA"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/embed-config", strings.NewReader(`{"clientKey":"CLIENTA"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	if got := ClientIP(req); got != "192.0.2.10" {
		t.Fatalf("expected 192.0.2.10, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 192.0.2.10")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
}
