package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yourorg/biportal/internal/domain"
)

// PostgresAuditRepository appends rows to the login_audit table.
// The table is append-only; nothing in this system updates or deletes
// audit rows.
type PostgresAuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAuditRepository creates a new audit repository
func NewPostgresAuditRepository(db *sql.DB, logger *slog.Logger) *PostgresAuditRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one login audit row
func (r *PostgresAuditRepository) Append(ctx context.Context, entry *domain.LoginAudit) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO login_audit (id, user_id, login_method, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.Method,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.CreatedAt)

	if err != nil {
		r.logger.Error("failed to append login audit",
			slog.String("user_id", entry.UserID),
			slog.String("method", entry.Method),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to append login audit: %w", err)
	}

	return nil
}
