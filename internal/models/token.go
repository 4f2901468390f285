package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessLevel represents the access level of an API token
type AccessLevel string

const (
	AccessLevelRead  AccessLevel = "read"
	AccessLevelWrite AccessLevel = "write"
	AccessLevelAdmin AccessLevel = "admin"
)

// Token represents the validated claims of an API token
type Token struct {
	TenantID  uuid.UUID   `json:"tenant_id"`
	Access    AccessLevel `json:"access"`
	ExpiresAt time.Time   `json:"exp"`
}

// CanWrite reports whether the token permits mutating operations.
func (t *Token) CanWrite() bool {
	return t.Access == AccessLevelWrite || t.Access == AccessLevelAdmin
}

// CreateTokenRequest represents the request to create a new token
type CreateTokenRequest struct {
	TenantID  uuid.UUID   `json:"tenant_id" binding:"required"`
	Access    AccessLevel `json:"access" binding:"required"`
	ExpiresAt time.Time   `json:"expires_at" binding:"required"`
}

// CreateTokenResponse represents the response when creating a new token
type CreateTokenResponse struct {
	Token     string      `json:"token"`
	TenantID  uuid.UUID   `json:"tenant_id"`
	Access    AccessLevel `json:"access"`
	ExpiresAt time.Time   `json:"expires_at"`
}
