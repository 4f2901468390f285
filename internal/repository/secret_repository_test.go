package repository

import (
	"context"
	"testing"
	"time"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func TestSecretRepository(t *testing.T) {
	db := testutils.TestDB(t)
	repo := NewSecretRepository(db, zap.NewNop())
	ctx := context.Background()

	cleanup := func() {
		_, err := db.ExecContext(ctx, "TRUNCATE TABLE secrets CASCADE")
		require.NoError(t, err)
	}

	t.Run("Upsert Creates At Version 1", func(t *testing.T) {
		cleanup()
		tenantID := testutils.RandomUUID()
		secret := &models.Secret{
			TenantID:       tenantID,
			Key:            "whatsapp_access_token",
			EncryptedValue: "blob-v1",
			Description:    strPtr("WhatsApp Cloud API token"),
		}

		err := repo.Upsert(ctx, secret)
		require.NoError(t, err)
		assert.Equal(t, 1, secret.Version)
		assert.Nil(t, secret.RotatedAt)

		retrieved, err := repo.Get(ctx, tenantID, "whatsapp_access_token")
		require.NoError(t, err)
		require.NotNil(t, retrieved)
		assert.Equal(t, "blob-v1", retrieved.EncryptedValue)
		assert.Equal(t, 1, retrieved.Version)
	})

	t.Run("Upsert Replaces And Bumps Version", func(t *testing.T) {
		cleanup()
		tenantID := testutils.RandomUUID()
		secret := &models.Secret{
			TenantID:       tenantID,
			Key:            "stripe_api_key",
			EncryptedValue: "blob-v1",
		}
		require.NoError(t, repo.Upsert(ctx, secret))

		replacement := &models.Secret{
			TenantID:       tenantID,
			Key:            "stripe_api_key",
			EncryptedValue: "blob-v2",
		}
		require.NoError(t, repo.Upsert(ctx, replacement))

		assert.Equal(t, 2, replacement.Version)
		assert.NotNil(t, replacement.RotatedAt)
		assert.Equal(t, secret.ID, replacement.ID)

		// Description from the first write survives when the second omits it
		first := &models.Secret{
			TenantID:       tenantID,
			Key:            "described",
			EncryptedValue: "blob",
			Description:    strPtr("keep me"),
		}
		require.NoError(t, repo.Upsert(ctx, first))
		second := &models.Secret{
			TenantID:       tenantID,
			Key:            "described",
			EncryptedValue: "blob2",
		}
		require.NoError(t, repo.Upsert(ctx, second))
		require.NotNil(t, second.Description)
		assert.Equal(t, "keep me", *second.Description)
	})

	t.Run("Upsert Never Clears Description Or Expiry", func(t *testing.T) {
		cleanup()
		tenantID := testutils.RandomUUID()
		expiry := time.Now().Add(24 * time.Hour)

		first := &models.Secret{
			TenantID:       tenantID,
			Key:            "shopify_token",
			EncryptedValue: "blob",
			Description:    strPtr("storefront token"),
			ExpiresAt:      &expiry,
		}
		require.NoError(t, repo.Upsert(ctx, first))

		// Nil description and expiry leave the stored values in place;
		// clearing requires delete-and-recreate.
		second := &models.Secret{
			TenantID:       tenantID,
			Key:            "shopify_token",
			EncryptedValue: "blob2",
		}
		require.NoError(t, repo.Upsert(ctx, second))

		require.NotNil(t, second.Description)
		assert.Equal(t, "storefront token", *second.Description)
		require.NotNil(t, second.ExpiresAt)
		assert.WithinDuration(t, expiry, *second.ExpiresAt, time.Second)
	})

	t.Run("Uniqueness Is Per Tenant", func(t *testing.T) {
		cleanup()
		tenantA := testutils.RandomUUID()
		tenantB := testutils.RandomUUID()

		secretA := &models.Secret{TenantID: tenantA, Key: "shared_key", EncryptedValue: "blob-a"}
		secretB := &models.Secret{TenantID: tenantB, Key: "shared_key", EncryptedValue: "blob-b"}
		require.NoError(t, repo.Upsert(ctx, secretA))
		require.NoError(t, repo.Upsert(ctx, secretB))

		assert.Equal(t, 1, secretA.Version)
		assert.Equal(t, 1, secretB.Version)
		assert.NotEqual(t, secretA.ID, secretB.ID)
	})

	t.Run("Metadata Excludes Ciphertext", func(t *testing.T) {
		cleanup()
		tenantID := testutils.RandomUUID()
		secret := &models.Secret{
			TenantID:       tenantID,
			Key:            "meta_app_secret",
			EncryptedValue: "very-sensitive-blob",
			Description:    strPtr("Meta app secret"),
		}
		require.NoError(t, repo.Upsert(ctx, secret))

		meta, err := repo.GetMetadata(ctx, tenantID, "meta_app_secret")
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, "meta_app_secret", meta.Key)
		assert.Equal(t, 1, meta.Version)

		metas, err := repo.ListMetadata(ctx, tenantID)
		require.NoError(t, err)
		assert.Len(t, metas, 1)
	})

	t.Run("Get Missing Returns Nil", func(t *testing.T) {
		cleanup()
		secret, err := repo.Get(ctx, testutils.RandomUUID(), "nope")
		require.NoError(t, err)
		assert.Nil(t, secret)
	})

	t.Run("ReplaceCiphertext Bumps Version", func(t *testing.T) {
		cleanup()
		tenantID := testutils.RandomUUID()
		secret := &models.Secret{TenantID: tenantID, Key: "rotated", EncryptedValue: "old-blob"}
		require.NoError(t, repo.Upsert(ctx, secret))

		err := repo.ReplaceCiphertext(ctx, secret.ID, "new-blob")
		require.NoError(t, err)

		retrieved, err := repo.Get(ctx, tenantID, "rotated")
		require.NoError(t, err)
		require.NotNil(t, retrieved)
		assert.Equal(t, "new-blob", retrieved.EncryptedValue)
		assert.Equal(t, 2, retrieved.Version)
		assert.NotNil(t, retrieved.RotatedAt)
	})

	t.Run("Delete And Exists", func(t *testing.T) {
		cleanup()
		tenantID := testutils.RandomUUID()
		secret := &models.Secret{TenantID: tenantID, Key: "transient", EncryptedValue: "blob"}
		require.NoError(t, repo.Upsert(ctx, secret))

		exists, err := repo.Exists(ctx, tenantID, "transient")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, repo.Delete(ctx, tenantID, "transient"))

		exists, err = repo.Exists(ctx, tenantID, "transient")
		require.NoError(t, err)
		assert.False(t, exists)

		err = repo.Delete(ctx, tenantID, "transient")
		assert.ErrorIs(t, err, models.ErrSecretNotFound)
	})

	t.Run("PurgeExpiredBefore", func(t *testing.T) {
		cleanup()
		tenantID := testutils.RandomUUID()
		past := time.Now().Add(-48 * time.Hour)
		future := time.Now().Add(48 * time.Hour)

		expired := &models.Secret{TenantID: tenantID, Key: "expired", EncryptedValue: "blob", ExpiresAt: &past}
		live := &models.Secret{TenantID: tenantID, Key: "live", EncryptedValue: "blob", ExpiresAt: &future}
		require.NoError(t, repo.Upsert(ctx, expired))
		require.NoError(t, repo.Upsert(ctx, live))

		purged, err := repo.PurgeExpiredBefore(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		remaining, err := repo.ListMetadata(ctx, tenantID)
		require.NoError(t, err)
		assert.Len(t, remaining, 1)
		assert.Equal(t, "live", remaining[0].Key)
	})
}
