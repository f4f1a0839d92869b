package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/biportal/internal/domain"
)

const (
	defaultAADBaseURL = "https://login.microsoftonline.com"
	defaultAPIBaseURL = "https://api.powerbi.com"

	// Fixed audience for the client-credentials grant
	powerBIScope = "https://analysis.windows.net/powerbi/api/.default"
)

// Config holds the service credential and endpoint overrides
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	AADBaseURL   string // empty means login.microsoftonline.com
	APIBaseURL   string // empty means api.powerbi.com
	Timeout      time.Duration
}

// Client talks to Azure AD and the Power BI REST API. It holds no
// mutable state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// NewClient creates a Power BI API client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AADBaseURL == "" {
		cfg.AADBaseURL = defaultAADBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg:    cfg,
		logger: logger,
	}
}

// AcquireToken exchanges the standing service credential for a bearer
// token via the client-credentials grant. The token is not cached;
// every exchange starts here.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.cfg.AADBaseURL, c.cfg.TenantID)

	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"scope":         {powerBIScope},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentityProviderUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentityProviderUnreachable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: status %d", domain.ErrIdentityProviderUnreachable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("AAD token request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return "", fmt.Errorf("%w: status %d", domain.ErrCredentialRejected, resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token response", domain.ErrCredentialRejected)
	}

	return parsed.AccessToken, nil
}

// GenerateEmbedToken requests a View-level embed token for one report
func (c *Client) GenerateEmbedToken(ctx context.Context, bearer, workspaceID, reportID string) (string, time.Time, error) {
	genURL := fmt.Sprintf("%s/v1.0/myorg/groups/%s/reports/%s/GenerateToken",
		c.cfg.APIBaseURL, workspaceID, reportID)

	payload := []byte(`{"accessLevel":"View"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, genURL, bytes.NewReader(payload))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", domain.ErrTokenGeneration, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", domain.ErrTokenGeneration, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		// Downstream body is surfaced for diagnostics, not interpreted
		c.logger.Error("embed token generation failed",
			slog.String("workspace_id", workspaceID),
			slog.String("report_id", reportID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return "", time.Time{}, fmt.Errorf("%w: status %d: %s", domain.ErrTokenGeneration, resp.StatusCode, string(body))
	}

	var parsed struct {
		Token      string `json:"token"`
		Expiration string `json:"expiration"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Token == "" {
		return "", time.Time{}, fmt.Errorf("%w: malformed GenerateToken response", domain.ErrTokenGeneration)
	}

	expiration, err := time.Parse(time.RFC3339, parsed.Expiration)
	if err != nil {
		c.logger.Warn("unparseable embed token expiration",
			slog.String("expiration", parsed.Expiration),
		)
	}

	return parsed.Token, expiration, nil
}

// GetReportDetails fetches the report descriptor to obtain its current
// embed URL. Report URLs can change, so this is re-fetched every call.
func (c *Client) GetReportDetails(ctx context.Context, bearer, workspaceID, reportID string) (string, error) {
	detailsURL := fmt.Sprintf("%s/v1.0/myorg/groups/%s/reports/%s",
		c.cfg.APIBaseURL, workspaceID, reportID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailsURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrReportLookup, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrReportLookup, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("report details lookup failed",
			slog.String("workspace_id", workspaceID),
			slog.String("report_id", reportID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrReportLookup, resp.StatusCode, string(body))
	}

	var parsed struct {
		EmbedURL string `json:"embedUrl"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.EmbedURL == "" {
		return "", fmt.Errorf("%w: malformed report response", domain.ErrReportLookup)
	}

	return parsed.EmbedURL, nil
}
