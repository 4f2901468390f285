package services

import (
	"context"
	"fmt"
	"time"

	"github.com/engagekit/vaultd/internal/crypto"
	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecretsService owns the lifecycle of tenant secrets. Plaintext exists
// only inside a call: it goes in through StoreSecret and comes back out
// through GetSecret; everything at rest and in returned records is
// ciphertext or metadata.
type SecretsService struct {
	repo      *repository.SecretRepository
	encryptor *crypto.Encryptor
	logger    *zap.Logger
	now       func() time.Time
}

func NewSecretsService(repo *repository.SecretRepository, encryptor *crypto.Encryptor, logger *zap.Logger) *SecretsService {
	return &SecretsService{
		repo:      repo,
		encryptor: encryptor,
		logger:    logger,
		now:       time.Now,
	}
}

// StoreSecret encrypts value and upserts it under (tenantID, key). A first
// write lands at version 1; later writes replace the ciphertext and bump
// the version. The returned record carries ciphertext only.
func (s *SecretsService) StoreSecret(ctx context.Context, tenantID uuid.UUID, key, value string, opts *models.StoreSecretOptions) (*models.Secret, error) {
	blob, err := s.encryptor.Encrypt(value)
	if err != nil {
		return nil, fmt.Errorf("error encrypting secret value: %w", err)
	}

	secret := &models.Secret{
		TenantID:       tenantID,
		Key:            key,
		EncryptedValue: blob,
	}
	if opts != nil {
		secret.Description = opts.Description
		secret.ExpiresAt = opts.ExpiresAt
	}

	if err := s.repo.Upsert(ctx, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// GetSecret returns the decrypted value. found is false when no row exists
// or the row's soft expiry has passed; the expired row stays in place.
func (s *SecretsService) GetSecret(ctx context.Context, tenantID uuid.UUID, key string) (value string, found bool, err error) {
	secret, err := s.repo.Get(ctx, tenantID, key)
	if err != nil {
		return "", false, err
	}
	if secret == nil || secret.IsExpired(s.now()) {
		return "", false, nil
	}

	plaintext, err := s.encryptor.Decrypt(secret.EncryptedValue)
	if err != nil {
		return "", false, err
	}
	return plaintext, true, nil
}

// GetSecretMetadata returns the ciphertext-free projection, or nil when the
// secret is missing or expired.
func (s *SecretsService) GetSecretMetadata(ctx context.Context, tenantID uuid.UUID, key string) (*models.SecretMetadata, error) {
	meta, err := s.repo.GetMetadata(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}
	if meta.ExpiresAt != nil && meta.ExpiresAt.Before(s.now()) {
		return nil, nil
	}
	return meta, nil
}

// ListSecrets returns metadata for every live secret of the tenant.
func (s *SecretsService) ListSecrets(ctx context.Context, tenantID uuid.UUID) ([]models.SecretMetadata, error) {
	metas, err := s.repo.ListMetadata(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	live := metas[:0]
	for _, m := range metas {
		if m.ExpiresAt != nil && m.ExpiresAt.Before(now) {
			continue
		}
		live = append(live, m)
	}
	return live, nil
}

// RotateAllSecrets re-wraps every secret of the tenant under the current
// key with a fresh nonce. A row that fails to decrypt or write is logged
// and skipped; its ciphertext stays untouched. Returns the number of rows
// rotated.
func (s *SecretsService) RotateAllSecrets(ctx context.Context, tenantID uuid.UUID) (int, error) {
	secrets, err := s.repo.ListForRotation(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	rotated := 0
	for _, secret := range secrets {
		plaintext, err := s.encryptor.Decrypt(secret.EncryptedValue)
		if err != nil {
			s.logger.Error("Skipping secret during rotation: decrypt failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("key", secret.Key),
				zap.Error(err))
			continue
		}

		blob, err := s.encryptor.Encrypt(plaintext)
		if err != nil {
			s.logger.Error("Skipping secret during rotation: encrypt failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("key", secret.Key),
				zap.Error(err))
			continue
		}

		if err := s.repo.ReplaceCiphertext(ctx, secret.ID, blob); err != nil {
			s.logger.Error("Skipping secret during rotation: write failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("key", secret.Key),
				zap.Error(err))
			continue
		}
		rotated++
	}

	s.logger.Info("Secret rotation completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("rotated", rotated),
		zap.Int("total", len(secrets)))
	return rotated, nil
}

// DeleteSecret removes the row. Returns models.ErrSecretNotFound when no
// row exists.
func (s *SecretsService) DeleteSecret(ctx context.Context, tenantID uuid.UUID, key string) error {
	return s.repo.Delete(ctx, tenantID, key)
}

// HasSecret reports whether a live (non-expired) secret exists.
func (s *SecretsService) HasSecret(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	meta, err := s.GetSecretMetadata(ctx, tenantID, key)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}
