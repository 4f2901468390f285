package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Provider identifies an external webhook sender.
type Provider string

const (
	ProviderMeta        Provider = "meta"
	ProviderShopify     Provider = "shopify"
	ProviderStripe      Provider = "stripe"
	ProviderWooCommerce Provider = "woocommerce"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderMeta, ProviderShopify, ProviderStripe, ProviderWooCommerce:
		return true
	}
	return false
}

// WebhookEvent is an inbound provider delivery that passed signature
// verification. Rows are consumed by downstream processors and purged
// by the retention sweeper.
type WebhookEvent struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	Provider   Provider       `json:"provider" db:"provider"`
	Topic      *string        `json:"topic,omitempty" db:"topic"`
	DeliveryID *string        `json:"delivery_id,omitempty" db:"delivery_id"`
	Payload    datatypes.JSON `json:"payload" db:"payload"`
	ReceivedAt time.Time      `json:"received_at" db:"received_at"`
}
