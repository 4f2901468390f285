package handlers

import (
	"net/http"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/services"
	"github.com/gin-gonic/gin"
)

type TokenHandler struct {
	tokenService *services.TokenService
}

func NewTokenHandler(tokenService *services.TokenService) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
	}
}

// CreateToken mints a tenant-scoped API token. The route is gated behind
// the master token by middleware.
func (h *TokenHandler) CreateToken(c *gin.Context) {
	var req models.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Access {
	case models.AccessLevelRead, models.AccessLevelWrite, models.AccessLevelAdmin:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid access level"})
		return
	}

	tokenString, err := h.tokenService.CreateToken(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}

	c.JSON(http.StatusOK, models.CreateTokenResponse{
		Token:     tokenString,
		TenantID:  req.TenantID,
		Access:    req.Access,
		ExpiresAt: req.ExpiresAt,
	})
}
