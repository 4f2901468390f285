package middleware

import (
	"net/http"
	"strings"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TokenKey = "token"

// TokenAuth validates bearer JWTs and stores the tenant-scoped claims in
// the request context.
func TokenAuth(tokenService *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := ContextLogger(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Info("Authorization header is missing")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Info("Invalid authorization header format")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		token, err := tokenService.ValidateToken(parts[1])
		if err != nil {
			logger.Info("Token validation failed", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(TokenKey, token)
		c.Next()
	}
}

// RequireMasterToken is a middleware that requires the master token
func RequireMasterToken(tokenService *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		if !tokenService.ValidateMasterToken(parts[1]) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Master token required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireTenantScope ensures a token only reaches its own tenant's
// resources. Admin tokens may cross tenants.
func RequireTenantScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.Param("tenant_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
			c.Abort()
			return
		}

		value, exists := c.Get(TokenKey)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
			c.Abort()
			return
		}
		token := value.(*models.Token)

		if token.Access != models.AccessLevelAdmin && token.TenantID != tenantID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Token is not scoped to this tenant"})
			c.Abort()
			return
		}

		c.Next()
	}
}
