package domain

import (
	"context"
	"time"
)

// User represents a portal user
type User struct {
	ID             string // UUID
	Username       string // Unique username
	PasswordHash   string // Bcrypt hashed password (not returned in API)
	FederatedEmail string // Microsoft account email, empty if password-only
	Role           string // "admin" or a client role such as "clienta"
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IsActive       bool
}

// Identity is what a successful login resolves to
type Identity struct {
	Username       string `json:"username"`
	Role           string `json:"role"`
	FederatedEmail string `json:"federatedEmail,omitempty"`
}

// LoginAudit is one append-only record per successful login
type LoginAudit struct {
	ID        string
	UserID    string
	Method    string // "password" or "microsoft"
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Login methods recorded in the audit log
const (
	LoginMethodPassword  = "password"
	LoginMethodMicrosoft = "microsoft"
)

// UserRepository defines data access for users
type UserRepository interface {
	GetActiveByUsername(ctx context.Context, username string) (*User, error)
	GetActiveByFederatedEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	Deactivate(ctx context.Context, username string) error
}

// AuditRepository appends login audit rows
type AuditRepository interface {
	Append(ctx context.Context, entry *LoginAudit) error
}
