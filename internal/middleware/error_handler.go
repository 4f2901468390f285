package middleware

import (
	"errors"
	"net/http"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/gin-gonic/gin"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler maps errors pushed via c.Error to HTTP responses in a
// centralized way. Domain sentinels carry their own status; everything
// else collapses to a generic 500 so internal failure detail never
// reaches the caller. A handler that already wrote a response is left
// alone even when it also recorded an error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		statusCode := http.StatusInternalServerError
		message := "Internal server error"
		switch {
		case errors.Is(err, models.ErrSecretNotFound):
			statusCode = http.StatusNotFound
			message = "Secret not found"
		case errors.Is(err, models.ErrSignatureInvalid),
			errors.Is(err, models.ErrSignatureMissing),
			errors.Is(err, models.ErrStaleTimestamp):
			statusCode = http.StatusUnauthorized
			message = "Invalid webhook signature"
		case errors.Is(err, models.ErrUnknownProvider):
			statusCode = http.StatusBadRequest
			message = "Unknown webhook provider"
		}

		c.JSON(statusCode, ErrorResponse{Error: message})
	}
}
