package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/engagekit/vaultd/internal/crypto"
	"github.com/engagekit/vaultd/internal/middleware"
	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/repository"
	"github.com/engagekit/vaultd/internal/services"
	"github.com/engagekit/vaultd/internal/testutils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSecretRouter(t *testing.T, access models.AccessLevel) (*gin.Engine, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutils.TestDB(t)
	repo := repository.NewSecretRepository(db, zap.NewNop())
	encryptor, err := crypto.NewEncryptor("handler-test-key", false)
	require.NoError(t, err)
	service := services.NewSecretsService(repo, encryptor, zap.NewNop())
	handler := NewSecretHandler(service)

	tenantID := testutils.RandomUUID()

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	// Inject validated claims directly; the auth middleware has its own tests
	router.Use(func(c *gin.Context) {
		c.Set(middleware.TokenKey, &models.Token{
			TenantID:  tenantID,
			Access:    access,
			ExpiresAt: time.Now().Add(time.Hour),
		})
		c.Next()
	})

	secrets := router.Group("/tenants/:tenant_id/secrets")
	{
		secrets.GET("", handler.ListSecrets)
		secrets.POST("/rotate", handler.RotateSecrets)
		secrets.PUT("/:key", handler.StoreSecret)
		secrets.GET("/:key", handler.GetSecret)
		secrets.GET("/:key/metadata", handler.GetSecretMetadata)
		secrets.DELETE("/:key", handler.DeleteSecret)
	}

	return router, tenantID
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSecretHandler(t *testing.T) {
	t.Run("Store Get And Metadata", func(t *testing.T) {
		router, tenantID := newSecretRouter(t, models.AccessLevelWrite)
		base := "/tenants/" + tenantID.String() + "/secrets"

		w := doJSON(router, http.MethodPut, base+"/whatsapp_access_token", models.StoreSecretRequest{
			Value:       "EAAG-token",
			Description: strPtr("WhatsApp Cloud API token"),
		})
		require.Equal(t, http.StatusOK, w.Code)

		var meta models.SecretMetadata
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
		assert.Equal(t, 1, meta.Version)
		// Metadata responses must never carry ciphertext or plaintext
		assert.NotContains(t, w.Body.String(), "EAAG-token")
		assert.NotContains(t, w.Body.String(), "encrypted_value")

		w = doJSON(router, http.MethodGet, base+"/whatsapp_access_token", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp models.GetSecretResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "EAAG-token", resp.Value)

		w = doJSON(router, http.MethodGet, base+"/whatsapp_access_token/metadata", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "EAAG-token")
	})

	t.Run("Get Missing Returns 404", func(t *testing.T) {
		router, tenantID := newSecretRouter(t, models.AccessLevelRead)
		w := doJSON(router, http.MethodGet, "/tenants/"+tenantID.String()+"/secrets/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Expired Secret Returns 404", func(t *testing.T) {
		router, tenantID := newSecretRouter(t, models.AccessLevelWrite)
		base := "/tenants/" + tenantID.String() + "/secrets"

		expired := time.Now().Add(-time.Minute)
		w := doJSON(router, http.MethodPut, base+"/stale", models.StoreSecretRequest{
			Value:     "old-value",
			ExpiresAt: &expired,
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, http.MethodGet, base+"/stale", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("List", func(t *testing.T) {
		router, tenantID := newSecretRouter(t, models.AccessLevelWrite)
		base := "/tenants/" + tenantID.String() + "/secrets"

		for _, key := range []string{"alpha", "beta"} {
			w := doJSON(router, http.MethodPut, base+"/"+key, models.StoreSecretRequest{Value: "v"})
			require.Equal(t, http.StatusOK, w.Code)
		}

		w := doJSON(router, http.MethodGet, base, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var metas []models.SecretMetadata
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metas))
		assert.Len(t, metas, 2)
	})

	t.Run("Rotate", func(t *testing.T) {
		router, tenantID := newSecretRouter(t, models.AccessLevelWrite)
		base := "/tenants/" + tenantID.String() + "/secrets"

		for _, key := range []string{"one", "two"} {
			w := doJSON(router, http.MethodPut, base+"/"+key, models.StoreSecretRequest{Value: "v-" + key})
			require.Equal(t, http.StatusOK, w.Code)
		}

		w := doJSON(router, http.MethodPost, base+"/rotate", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp models.RotateSecretsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Rotated)
	})

	t.Run("Delete", func(t *testing.T) {
		router, tenantID := newSecretRouter(t, models.AccessLevelWrite)
		base := "/tenants/" + tenantID.String() + "/secrets"

		w := doJSON(router, http.MethodPut, base+"/doomed", models.StoreSecretRequest{Value: "v"})
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, http.MethodDelete, base+"/doomed", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(router, http.MethodDelete, base+"/doomed", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Read Token Cannot Write", func(t *testing.T) {
		router, tenantID := newSecretRouter(t, models.AccessLevelRead)
		base := "/tenants/" + tenantID.String() + "/secrets"

		w := doJSON(router, http.MethodPut, base+"/key", models.StoreSecretRequest{Value: "v"})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doJSON(router, http.MethodPost, base+"/rotate", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doJSON(router, http.MethodDelete, base+"/key", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Missing Value Rejected", func(t *testing.T) {
		router, tenantID := newSecretRouter(t, models.AccessLevelWrite)
		w := doJSON(router, http.MethodPut, "/tenants/"+tenantID.String()+"/secrets/key", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func strPtr(s string) *string { return &s }
