package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/biportal/internal/featureflags"
	"github.com/yourorg/biportal/internal/handler"
	"github.com/yourorg/biportal/internal/infrastructure/logger"
	"github.com/yourorg/biportal/internal/infrastructure/powerbi"
	"github.com/yourorg/biportal/internal/infrastructure/redis"
	"github.com/yourorg/biportal/internal/observability/metrics"
	"github.com/yourorg/biportal/internal/observability/tracing"
	"github.com/yourorg/biportal/internal/repository"
	"github.com/yourorg/biportal/internal/security"
	"github.com/yourorg/biportal/internal/security/audit"
	"github.com/yourorg/biportal/internal/security/auth"
	"github.com/yourorg/biportal/internal/security/middleware"
	"github.com/yourorg/biportal/internal/security/ratelimit"
	"github.com/yourorg/biportal/internal/service"
	"github.com/yourorg/biportal/internal/worker"
	"github.com/yourorg/biportal/pkg/cache"
	"github.com/yourorg/biportal/pkg/config"
	"github.com/yourorg/biportal/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting BI portal server",
		slog.String("environment", cfg.Environment),
		slog.Int("report_scopes", len(cfg.Scopes)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "biportal", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect to Postgres
	pool, err := database.NewConnectionPool(ctx, cfg.Database, log)
	if err != nil {
		log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Redis is optional; without it login rate limiting is per-process
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	// 6. Initialize repositories
	userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
	auditRepo := repository.NewPostgresAuditRepository(pool.GetDB(), log)

	// 7. Initialize services
	authService := service.NewAuthService(userRepo, auditRepo, log)

	pbiClient := powerbi.NewClient(powerbi.Config{
		TenantID:     cfg.TenantID,
		ClientID:     cfg.PowerBIClientID,
		ClientSecret: cfg.PowerBIClientSecret,
		AADBaseURL:   cfg.AADBaseURL,
		APIBaseURL:   cfg.PowerBIBaseURL,
		Timeout:      time.Duration(cfg.PowerBITimeoutSecs) * time.Second,
	}, log)
	embedService := service.NewEmbedService(cfg.Scopes, pbiClient, log)

	rowCache := cache.New()
	datasetService := service.NewDatasetService(cfg.DataDir, rowCache, log)

	// 8. Initialize security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "biportal")
	authz := security.NewAuthorizationService(log)
	auditLogger := audit.NewLogger(log)

	var loginLimiter ratelimit.Limiter
	if redisClient != nil {
		loginLimiter = ratelimit.NewRedisLimiter(redisClient, cfg.LoginRateLimitPerMinute, time.Minute, log)
	} else {
		loginLimiter = ratelimit.NewWindowLimiter(cfg.LoginRateLimitPerMinute, time.Minute)
	}

	// 9. Initialize handlers
	loginHandler := handler.NewLoginHandler(authService, tokenManager, auditLogger, cfg.AdminDefaultClientKey, log)
	embedHandler := handler.NewEmbedConfigHandler(embedService, authz, auditLogger, log)
	dataHandler := handler.NewDataHandler(datasetService, authz, auditLogger, log)

	var redisPinger handler.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	healthHandler := handler.NewHealthHandler(pool.Health, redisPinger, log)

	// 10. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login-password", loginHandler.HandlePassword)
	mux.HandleFunc("POST /api/auth/login-microsoft", loginHandler.HandleMicrosoft)
	mux.Handle("POST /api/embed-config", embedHandler)
	mux.HandleFunc("GET /api/data/admin", dataHandler.HandleAdmin)
	mux.HandleFunc("GET /api/data/{client}", dataHandler.HandleClient)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	if featureflags.Enabled("audit_stream") {
		auditStreamHandler := handler.NewAuditStreamHandler(auditLogger, tokenManager, authz, cfg.CORSAllowedOrigins, log)
		mux.Handle("GET /ws/audit", auditStreamHandler)
		log.Info("audit stream enabled")
	}

	// The metrics wrapper buffers status codes, which breaks websocket
	// hijacking, so /ws/ requests bypass it.
	metered := metrics.HTTPMetricsMiddleware(mux)
	routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			mux.ServeHTTP(w, r)
			return
		}
		metered.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> CORS -> content type -> login rate limit -> session
	rootHandler := withRequestID(
		middleware.CORSMiddleware(cfg.CORSAllowedOrigins)(
			middleware.ValidateJSONContentType(log)(
				middleware.LoginRateLimitMiddleware(loginLimiter, log)(
					middleware.SessionMiddleware(tokenManager, log)(routed),
				),
			),
		),
		log,
	)

	// 11. Start janitor in background
	janitor := worker.NewJanitor(rowCache, datasetService, log, time.Minute)
	go janitor.Start(ctx)

	// 12. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("data_dir", cfg.DataDir),
		slog.Int("login_rate_limit", cfg.LoginRateLimitPerMinute),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop the janitor
	loginLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
