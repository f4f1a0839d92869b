package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yourorg/biportal/internal/domain"
	"github.com/yourorg/biportal/internal/observability/metrics"
	"github.com/yourorg/biportal/pkg/config"
)

// ReportTokenClient is the slice of the Power BI API the embed service
// needs. Implemented by powerbi.Client.
type ReportTokenClient interface {
	AcquireToken(ctx context.Context) (string, error)
	GenerateEmbedToken(ctx context.Context, bearer, workspaceID, reportID string) (string, time.Time, error)
	GetReportDetails(ctx context.Context, bearer, workspaceID, reportID string) (string, error)
}

// EmbedService mints short-lived viewing credentials for reports. It
// is stateless; concurrent calls need no coordination beyond reading
// the immutable scope registry.
type EmbedService struct {
	scopes map[string]config.Scope
	client ReportTokenClient
	logger *slog.Logger
}

// NewEmbedService creates a new embed credential service
func NewEmbedService(scopes map[string]config.Scope, client ReportTokenClient, logger *slog.Logger) *EmbedService {
	if logger == nil {
		logger = slog.Default()
	}

	return &EmbedService{
		scopes: scopes,
		client: client,
		logger: logger,
	}
}

// KnownClient reports whether a client key exists in the registry
func (s *EmbedService) KnownClient(clientKey string) bool {
	_, ok := s.scopes[strings.ToUpper(clientKey)]
	return ok
}

// GetEmbedCredential resolves the client scope, exchanges the service
// credential for a bearer token, then issues a View token and fetches
// the report's current embed URL. The bearer token is deliberately not
// reused across calls; volume is low enough that re-acquiring keeps
// the path stateless. Every step fails fast on the first non-success
// status: no retries anywhere.
func (s *EmbedService) GetEmbedCredential(ctx context.Context, clientKey string) (*domain.EmbedCredential, error) {
	scope, ok := s.scopes[strings.ToUpper(clientKey)]
	if !ok {
		// Fails before any outbound call is made
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownClient, clientKey)
	}

	start := time.Now()

	bearer, err := s.client.AcquireToken(ctx)
	if err != nil {
		metrics.ObserveEmbedExchange("aad_failure", time.Since(start))
		return nil, err
	}

	token, expiration, err := s.client.GenerateEmbedToken(ctx, bearer, scope.WorkspaceID, scope.ReportID)
	if err != nil {
		metrics.ObserveEmbedExchange("token_failure", time.Since(start))
		return nil, err
	}

	embedURL, err := s.client.GetReportDetails(ctx, bearer, scope.WorkspaceID, scope.ReportID)
	if err != nil {
		metrics.ObserveEmbedExchange("report_failure", time.Since(start))
		return nil, err
	}

	metrics.ObserveEmbedExchange("success", time.Since(start))
	s.logger.Info("embed credential issued",
		slog.String("client_key", strings.ToUpper(clientKey)),
		slog.String("report_id", scope.ReportID),
		slog.Time("expiration", expiration),
	)

	return &domain.EmbedCredential{
		EmbedToken:  token,
		Expiration:  expiration,
		EmbedURL:    embedURL,
		ReportID:    scope.ReportID,
		WorkspaceID: scope.WorkspaceID,
	}, nil
}
