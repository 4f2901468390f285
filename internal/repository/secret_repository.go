package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const secretColumns = `id, tenant_id, key, encrypted_value, description, expires_at, rotated_at, version, created_at, updated_at`

const metadataColumns = `id, tenant_id, key, description, expires_at, rotated_at, version, created_at, updated_at`

type SecretRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSecretRepository(db *sqlx.DB, logger *zap.Logger) *SecretRepository {
	return &SecretRepository{db: db, logger: logger}
}

// Upsert stores a secret in a single statement. The ON CONFLICT arm makes
// concurrent writers safe: a new (tenant_id, key) can never double-insert,
// and the version bump happens inside the statement so it stays monotonic
// under last-write-wins. Description and expiry are only replaced when the
// caller supplied them; a nil never clears a stored value, so removing a
// description or expiry requires deleting and recreating the secret.
// The stored row is scanned back into secret.
func (r *SecretRepository) Upsert(ctx context.Context, secret *models.Secret) error {
	query := `
		INSERT INTO secrets (id, tenant_id, key, encrypted_value, description, expires_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, now(), now())
		ON CONFLICT (tenant_id, key) DO UPDATE SET
			encrypted_value = EXCLUDED.encrypted_value,
			description     = COALESCE(EXCLUDED.description, secrets.description),
			expires_at      = COALESCE(EXCLUDED.expires_at, secrets.expires_at),
			version         = secrets.version + 1,
			rotated_at      = now(),
			updated_at      = now()
		RETURNING ` + secretColumns

	if secret.ID == uuid.Nil {
		secret.ID = uuid.New()
	}

	err := r.db.QueryRowxContext(ctx, query,
		secret.ID,
		secret.TenantID,
		secret.Key,
		secret.EncryptedValue,
		secret.Description,
		secret.ExpiresAt,
	).StructScan(secret)
	if err != nil {
		return fmt.Errorf("error upserting secret: %w", err)
	}

	return nil
}

func (r *SecretRepository) Get(ctx context.Context, tenantID uuid.UUID, key string) (*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE tenant_id = $1 AND key = $2`

	var secret models.Secret
	err := r.db.GetContext(ctx, &secret, query, tenantID, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting secret: %w", err)
	}
	return &secret, nil
}

func (r *SecretRepository) GetMetadata(ctx context.Context, tenantID uuid.UUID, key string) (*models.SecretMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM secrets WHERE tenant_id = $1 AND key = $2`

	var meta models.SecretMetadata
	err := r.db.GetContext(ctx, &meta, query, tenantID, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting secret metadata: %w", err)
	}
	return &meta, nil
}

func (r *SecretRepository) ListMetadata(ctx context.Context, tenantID uuid.UUID) ([]models.SecretMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM secrets WHERE tenant_id = $1 ORDER BY key`

	var metas []models.SecretMetadata
	err := r.db.SelectContext(ctx, &metas, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error listing secret metadata: %w", err)
	}
	return metas, nil
}

// ListForRotation returns full rows, ciphertext included, for the rotation
// sweep.
func (r *SecretRepository) ListForRotation(ctx context.Context, tenantID uuid.UUID) ([]models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE tenant_id = $1 ORDER BY key`

	var secrets []models.Secret
	err := r.db.SelectContext(ctx, &secrets, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error listing secrets for rotation: %w", err)
	}
	return secrets, nil
}

// ReplaceCiphertext rewraps a single row during rotation: new blob, version
// bump, fresh rotated_at. Nothing else changes.
func (r *SecretRepository) ReplaceCiphertext(ctx context.Context, id uuid.UUID, blob string) error {
	query := `
		UPDATE secrets
		SET encrypted_value = $2, version = version + 1, rotated_at = now(), updated_at = now()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, blob)
	if err != nil {
		return fmt.Errorf("error replacing ciphertext: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rotation result: %w", err)
	}
	if rows == 0 {
		return models.ErrSecretNotFound
	}
	return nil
}

func (r *SecretRepository) Delete(ctx context.Context, tenantID uuid.UUID, key string) error {
	query := `DELETE FROM secrets WHERE tenant_id = $1 AND key = $2`

	result, err := r.db.ExecContext(ctx, query, tenantID, key)
	if err != nil {
		return fmt.Errorf("error deleting secret: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking delete result: %w", err)
	}
	if rows == 0 {
		return models.ErrSecretNotFound
	}
	return nil
}

func (r *SecretRepository) Exists(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM secrets WHERE tenant_id = $1 AND key = $2)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, tenantID, key)
	if err != nil {
		return false, fmt.Errorf("error checking secret existence: %w", err)
	}
	return exists, nil
}

// PurgeExpiredBefore hard-deletes rows whose soft expiry passed before the
// cutoff. Read paths already treat them as absent; this only reclaims rows
// the retention window no longer needs.
func (r *SecretRepository) PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM secrets WHERE expires_at IS NOT NULL AND expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error purging expired secrets: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking purge result: %w", err)
	}
	if rows > 0 {
		r.logger.Info("Purged expired secrets", zap.Int64("count", rows))
	}
	return rows, nil
}
