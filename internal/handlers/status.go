package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// StatusResponse represents the status endpoint response
type StatusResponse struct {
	Status        string       `json:"status"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Version       string       `json:"version"`
	Webhooks      WebhooksInfo `json:"webhooks"`
}

// WebhooksInfo describes the verification surface without leaking secrets
type WebhooksInfo struct {
	Algorithm  string   `json:"algorithm"`
	Providers  []string `json:"providers"`
	FailClosed bool     `json:"fail_closed"`
}

// StatusHandler handles the status endpoint
func StatusHandler(failClosed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Version:       "1.0.0",
			Webhooks: WebhooksInfo{
				Algorithm:  "HMAC-SHA256",
				Providers:  []string{"meta", "shopify", "stripe", "woocommerce"},
				FailClosed: failClosed,
			},
		})
	}
}
