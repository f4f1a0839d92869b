package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment           string
	ServerPort            int
	LogLevel              string
	CORSAllowedOrigins    []string
	DataDir               string
	ScopeRegistryFile     string
	AdminDefaultClientKey string
	JWTSecret             string
	RedisURL              string

	// Azure AD / Power BI service credential
	TenantID            string
	PowerBIClientID     string
	PowerBIClientSecret string
	PowerBITimeoutSecs  int

	// Overridable in tests; empty means the public endpoints
	AADBaseURL     string
	PowerBIBaseURL string

	LoginRateLimitPerMinute int

	Database DatabaseConfig

	// Scopes maps client key -> report scope, loaded from the registry
	// file at startup and immutable afterwards.
	Scopes map[string]Scope
}

// DatabaseConfig holds postgres connection parameters
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Scope is one report-scope registry entry
type Scope struct {
	WorkspaceID string `yaml:"workspaceId"`
	ReportID    string `yaml:"reportId"`
}

// Load reads configuration from environment variables and the scope
// registry file
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "5050"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("PGPORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid PGPORT: %w", err)
	}

	timeoutSecs, err := strconv.Atoi(getEnv("POWERBI_HTTP_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid POWERBI_HTTP_TIMEOUT_SECONDS: %w", err)
	}

	loginLimit, err := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT_PER_MINUTE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_LIMIT_PER_MINUTE: %w", err)
	}

	cfg := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServerPort:         port,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		DataDir:            getEnv("DATA_DIR", "data"),
		ScopeRegistryFile:  getEnv("SCOPE_REGISTRY_FILE", "config/clients.yaml"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RedisURL:           os.Getenv("REDIS_URL"),

		TenantID:            os.Getenv("TENANT_ID"),
		PowerBIClientID:     os.Getenv("POWERBI_CLIENT_ID"),
		PowerBIClientSecret: os.Getenv("POWERBI_CLIENT_SECRET"),
		PowerBITimeoutSecs:  timeoutSecs,
		AADBaseURL:          os.Getenv("AAD_BASE_URL"),
		PowerBIBaseURL:      os.Getenv("POWERBI_BASE_URL"),

		LoginRateLimitPerMinute: loginLimit,

		Database: DatabaseConfig{
			Host:     getEnv("PGHOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("PGUSER", "biportal"),
			Password: os.Getenv("PGPASSWORD"),
			Database: getEnv("PGDATABASE", "biportal"),
			SSLMode:  getEnv("PGSSLMODE", "disable"),
		},
	}

	scopes, err := LoadScopes(cfg.ScopeRegistryFile)
	if err != nil {
		return nil, err
	}
	cfg.Scopes = scopes

	cfg.AdminDefaultClientKey = getEnv("ADMIN_DEFAULT_CLIENT_KEY", firstScopeKey(scopes))

	return cfg, nil
}

// LoadScopes parses the YAML report-scope registry. A missing file is
// not an error; it yields an empty registry so the server can still
// serve data-only deployments.
func LoadScopes(path string) (map[string]Scope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Scope{}, nil
		}
		return nil, fmt.Errorf("read scope registry %s: %w", path, err)
	}

	var parsed struct {
		Clients map[string]Scope `yaml:"clients"`
	}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse scope registry %s: %w", path, err)
	}

	scopes := make(map[string]Scope, len(parsed.Clients))
	for key, s := range parsed.Clients {
		if s.WorkspaceID == "" || s.ReportID == "" {
			return nil, fmt.Errorf("scope registry %s: client %s missing workspaceId or reportId", path, key)
		}
		scopes[strings.ToUpper(key)] = s
	}
	return scopes, nil
}

func firstScopeKey(scopes map[string]Scope) string {
	keys := make([]string, 0, len(scopes))
	for k := range scopes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
