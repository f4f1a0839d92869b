package domain

import "errors"

// Authentication failures
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthorized      = errors.New("user not authorized")
	ErrUserNotFound       = errors.New("user not found")
)

// Embed token exchange failures
var (
	ErrUnknownClient               = errors.New("unknown client key")
	ErrIdentityProviderUnreachable = errors.New("identity provider unreachable")
	ErrCredentialRejected          = errors.New("service credential rejected")
	ErrTokenGeneration             = errors.New("embed token generation failed")
	ErrReportLookup                = errors.New("report details lookup failed")
)

// Data gateway failures
var (
	ErrDatasetNotFound = errors.New("no dataset for client")
)
