package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/engagekit/vaultd/internal/middleware"
	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/replay"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// EventStore persists verified deliveries. Satisfied by
// repository.WebhookEventRepository.
type EventStore interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
}

type WebhookHandler struct {
	events EventStore
	replay *replay.Cache
	logger *zap.Logger
}

func NewWebhookHandler(events EventStore, replayCache *replay.Cache, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, replay: replayCache, logger: logger}
}

// Receive persists a signature-verified provider delivery and acks it.
// The signature middleware has already run; this handler only records.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := models.Provider(c.Param("provider"))

	body := rawBody(c)
	if len(body) == 0 || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	topic, deliveryID := extractDeliveryInfo(provider, c, body)

	// Stripe retries aggressively and a captured delivery can be replayed
	// inside the signature tolerance window; duplicates are acked without
	// being stored again.
	withReplayCache := provider == models.ProviderStripe && deliveryID != nil && h.replay != nil
	if withReplayCache {
		seen, err := h.replay.Seen(c.Request.Context(), string(provider), *deliveryID)
		if err != nil {
			h.logger.Warn("Replay cache unavailable, storing delivery anyway", zap.Error(err))
		} else if seen {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	event := &models.WebhookEvent{
		Provider:   provider,
		Topic:      topic,
		DeliveryID: deliveryID,
		Payload:    datatypes.JSON(body),
	}
	if err := h.events.Create(c.Request.Context(), event); err != nil {
		// Do not mark the delivery id here: the provider's retry must
		// still be able to persist it.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record webhook"})
		return
	}

	if withReplayCache {
		if err := h.replay.Mark(c.Request.Context(), string(provider), *deliveryID); err != nil {
			h.logger.Warn("Failed to record delivery id in replay cache", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received", "id": event.ID})
}

func rawBody(c *gin.Context) []byte {
	if value, exists := c.Get(middleware.RawBodyKey); exists {
		if body, ok := value.([]byte); ok {
			return body
		}
	}
	// Middleware did not buffer the body (e.g. unverified mode); read it here
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil
	}
	return body
}

// extractDeliveryInfo pulls the topic and delivery id out of wherever the
// provider puts them: headers for Shopify/WooCommerce, the body envelope
// for Stripe and Meta.
func extractDeliveryInfo(provider models.Provider, c *gin.Context, body []byte) (topic, deliveryID *string) {
	switch provider {
	case models.ProviderShopify:
		topic = headerPtr(c, "X-Shopify-Topic")
		deliveryID = headerPtr(c, "X-Shopify-Webhook-Id")
	case models.ProviderWooCommerce:
		topic = headerPtr(c, "X-Wc-Webhook-Topic")
		deliveryID = headerPtr(c, "X-Wc-Webhook-Delivery-Id")
	case models.ProviderStripe:
		var envelope struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil {
			if envelope.Type != "" {
				topic = &envelope.Type
			}
			if envelope.ID != "" {
				deliveryID = &envelope.ID
			}
		}
	case models.ProviderMeta:
		var envelope struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Object != "" {
			topic = &envelope.Object
		}
	}
	return topic, deliveryID
}

func headerPtr(c *gin.Context, name string) *string {
	if value := c.GetHeader(name); value != "" {
		return &value
	}
	return nil
}
