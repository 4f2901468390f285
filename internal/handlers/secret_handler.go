package handlers

import (
	"net/http"

	"github.com/engagekit/vaultd/internal/middleware"
	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SecretHandler struct {
	secrets *services.SecretsService
}

func NewSecretHandler(secrets *services.SecretsService) *SecretHandler {
	return &SecretHandler{secrets: secrets}
}

func tenantIDParam(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return uuid.Nil, false
	}
	return tenantID, true
}

func requireWrite(c *gin.Context) bool {
	value, exists := c.Get(middleware.TokenKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return false
	}
	if !value.(*models.Token).CanWrite() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Write access required"})
		return false
	}
	return true
}

// StoreSecret handles PUT /tenants/:tenant_id/secrets/:key. The response
// is metadata only; neither the plaintext nor the ciphertext goes back out.
func (h *SecretHandler) StoreSecret(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}
	if !requireWrite(c) {
		return
	}

	var req models.StoreSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	secret, err := h.secrets.StoreSecret(c.Request.Context(), tenantID, c.Param("key"), req.Value, &models.StoreSecretOptions{
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.SecretMetadata{
		ID:          secret.ID,
		TenantID:    secret.TenantID,
		Key:         secret.Key,
		Description: secret.Description,
		ExpiresAt:   secret.ExpiresAt,
		RotatedAt:   secret.RotatedAt,
		Version:     secret.Version,
		CreatedAt:   secret.CreatedAt,
		UpdatedAt:   secret.UpdatedAt,
	})
}

// GetSecret returns the decrypted value. Missing and expired secrets are
// indistinguishable: both are a plain 404.
func (h *SecretHandler) GetSecret(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	key := c.Param("key")
	value, found, err := h.secrets.GetSecret(c.Request.Context(), tenantID, key)
	if err != nil {
		c.Error(err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Secret not found"})
		return
	}

	c.JSON(http.StatusOK, models.GetSecretResponse{Key: key, Value: value})
}

func (h *SecretHandler) GetSecretMetadata(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	meta, err := h.secrets.GetSecretMetadata(c.Request.Context(), tenantID, c.Param("key"))
	if err != nil {
		c.Error(err)
		return
	}
	if meta == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Secret not found"})
		return
	}

	c.JSON(http.StatusOK, meta)
}

func (h *SecretHandler) ListSecrets(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	metas, err := h.secrets.ListSecrets(c.Request.Context(), tenantID)
	if err != nil {
		c.Error(err)
		return
	}
	if metas == nil {
		metas = []models.SecretMetadata{}
	}

	c.JSON(http.StatusOK, metas)
}

func (h *SecretHandler) DeleteSecret(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}
	if !requireWrite(c) {
		return
	}

	// ErrSecretNotFound and unexpected failures both go through the
	// error-mapping middleware.
	if err := h.secrets.DeleteSecret(c.Request.Context(), tenantID, c.Param("key")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RotateSecrets re-wraps every secret of the tenant and reports how many
// rows succeeded. Partial progress is the contract: a bad row is skipped,
// not a batch failure.
func (h *SecretHandler) RotateSecrets(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}
	if !requireWrite(c) {
		return
	}

	rotated, err := h.secrets.RotateAllSecrets(c.Request.Context(), tenantID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.RotateSecretsResponse{Rotated: rotated})
}
