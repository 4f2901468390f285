package models

import (
	"time"

	"github.com/google/uuid"
)

// Secret is a tenant-scoped encrypted credential. The plaintext value never
// touches this struct; EncryptedValue holds the self-describing ciphertext
// blob produced by the crypto package.
type Secret struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	TenantID       uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Key            string     `json:"key" db:"key"`
	EncryptedValue string     `json:"-" db:"encrypted_value"`
	Description    *string    `json:"description,omitempty" db:"description"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	RotatedAt      *time.Time `json:"rotated_at,omitempty" db:"rotated_at"`
	Version        int        `json:"version" db:"version"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IsExpired reports whether the secret has passed its soft expiry.
func (s *Secret) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// SecretMetadata is the projection served to admin UIs. It deliberately has
// no field for the ciphertext so it can never transit encrypted material.
type SecretMetadata struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TenantID    uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Key         string     `json:"key" db:"key"`
	Description *string    `json:"description,omitempty" db:"description"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	RotatedAt   *time.Time `json:"rotated_at,omitempty" db:"rotated_at"`
	Version     int        `json:"version" db:"version"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type StoreSecretRequest struct {
	Value       string     `json:"value" binding:"required"`
	Description *string    `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// StoreSecretOptions carries the optional attributes of a store call.
type StoreSecretOptions struct {
	Description *string
	ExpiresAt   *time.Time
}

type GetSecretResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type RotateSecretsResponse struct {
	Rotated int `json:"rotated"`
}
