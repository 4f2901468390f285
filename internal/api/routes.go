package api

import (
	"github.com/engagekit/vaultd/internal/handlers"
	"github.com/engagekit/vaultd/internal/middleware"
	"github.com/engagekit/vaultd/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes with their middleware
func SetupRoutes(
	router *gin.Engine,
	secretHandler *handlers.SecretHandler,
	webhookHandler *handlers.WebhookHandler,
	tokenHandler *handlers.TokenHandler,
	tokenService *services.TokenService,
	verifier *services.WebhookVerifier,
	rateLimiter *middleware.RateLimiter,
	allowUnverified bool,
) {
	// Global middleware
	router.Use(middleware.ErrorHandler())

	// Public routes
	public := router.Group("/")
	{
		public.GET("/status", handlers.StatusHandler(!allowUnverified))
		public.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
	}

	// Provider webhook intake: signature-gated, no bearer auth
	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.WebhookSignature(verifier, allowUnverified))
	{
		webhooks.POST("/:provider", webhookHandler.Receive)
	}

	// Tenant secret management: authenticated and rate limited
	tenants := router.Group("/tenants/:tenant_id")
	tenants.Use(middleware.TokenAuth(tokenService))
	tenants.Use(middleware.RequireTenantScope())
	tenants.Use(rateLimiter.RateLimit())
	{
		secrets := tenants.Group("/secrets")
		{
			secrets.GET("", secretHandler.ListSecrets)
			secrets.POST("/rotate", secretHandler.RotateSecrets)
			secrets.PUT("/:key", secretHandler.StoreSecret)
			secrets.GET("/:key", secretHandler.GetSecret)
			secrets.GET("/:key/metadata", secretHandler.GetSecretMetadata)
			secrets.DELETE("/:key", secretHandler.DeleteSecret)
		}
	}

	// Token minting (requires master token)
	tokens := router.Group("/tokens")
	tokens.Use(middleware.RequireMasterToken(tokenService))
	{
		tokens.POST("", tokenHandler.CreateToken)
	}
}
