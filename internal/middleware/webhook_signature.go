package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RawBodyKey holds the unparsed request body bytes for the handler. The
// signature is always computed over these exact bytes; reserialized JSON
// can differ from what the provider signed.
const RawBodyKey = "raw_body"

// WebhookSignature gates webhook handlers behind provider signature
// verification. Verification is fail-closed: an unknown provider or a
// missing shared secret rejects the request unless allowUnverified is set,
// which is meant for local and staging environments only. The one
// per-provider exception is WooCommerce, whose deliveries may legitimately
// arrive unsigned; a missing WooCommerce header is logged and allowed,
// while a present-but-wrong one still rejects.
func WebhookSignature(verifier *services.WebhookVerifier, allowUnverified bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := ContextLogger(c)

		provider := models.Provider(c.Param("provider"))
		if !provider.Valid() {
			if allowUnverified {
				logger.Warn("Unknown webhook provider, allowing unverified request",
					zap.String("provider", string(provider)))
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown webhook provider"})
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			c.Abort()
			return
		}
		// Restore the body so the handler can bind it
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		c.Set(RawBodyKey, body)

		if _, ok := verifier.SecretFor(provider); !ok {
			if allowUnverified {
				logger.Warn("No webhook secret configured, allowing unverified request",
					zap.String("provider", string(provider)))
				c.Next()
				return
			}
			logger.Error("No webhook secret configured, rejecting",
				zap.String("provider", string(provider)))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Webhook verification unavailable"})
			c.Abort()
			return
		}

		header, err := services.SignatureHeader(provider)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown webhook provider"})
			c.Abort()
			return
		}

		signature := c.GetHeader(header)
		if signature == "" {
			if provider == models.ProviderWooCommerce {
				logger.Warn("WooCommerce webhook arrived without signature header")
				c.Next()
				return
			}
			logger.Info("Webhook signature header missing",
				zap.String("provider", string(provider)))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Signature header is required"})
			c.Abort()
			return
		}

		if err := verifier.Verify(provider, body, signature); err != nil {
			logger.Info("Webhook signature verification failed",
				zap.String("provider", string(provider)),
				zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
			c.Abort()
			return
		}

		c.Next()
	}
}
