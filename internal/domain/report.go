package domain

import "time"

// ReportScope pins a client key to its Power BI workspace and report.
// Loaded once at startup and immutable for the process lifetime.
type ReportScope struct {
	ClientKey   string
	WorkspaceID string
	ReportID    string
}

// EmbedCredential is the short-lived viewing credential minted per
// request. Never persisted server-side.
type EmbedCredential struct {
	EmbedToken  string    `json:"embedToken"`
	Expiration  time.Time `json:"expiration"`
	EmbedURL    string    `json:"embedUrl"`
	ReportID    string    `json:"reportId"`
	WorkspaceID string    `json:"workspaceId"`
}

// Row is one spreadsheet row keyed by column header. The shape comes
// entirely from the source file; no schema is enforced.
type Row map[string]any
