package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/engagekit/vaultd/internal/models"
)

// Signature header names, as the providers send them.
const (
	MetaSignatureHeader        = "X-Hub-Signature-256"
	ShopifySignatureHeader     = "X-Shopify-Hmac-Sha256"
	StripeSignatureHeader      = "Stripe-Signature"
	WooCommerceSignatureHeader = "X-Wc-Webhook-Signature"
)

const metaSignaturePrefix = "sha256="

// WebhookVerifier recomputes provider signatures over the raw request body
// and compares them in constant time. It holds no per-request state.
type WebhookVerifier struct {
	secrets   map[models.Provider]string
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier builds a verifier from the per-provider shared
// secrets. tolerance bounds the age of Stripe's signed timestamp.
func NewWebhookVerifier(secrets map[models.Provider]string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = 300 * time.Second
	}
	return &WebhookVerifier{
		secrets:   secrets,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// SecretFor returns the configured shared secret for a provider.
func (v *WebhookVerifier) SecretFor(provider models.Provider) (string, bool) {
	secret, ok := v.secrets[provider]
	return secret, ok && secret != ""
}

// SignatureHeader returns the header a provider carries its signature in.
func SignatureHeader(provider models.Provider) (string, error) {
	switch provider {
	case models.ProviderMeta:
		return MetaSignatureHeader, nil
	case models.ProviderShopify:
		return ShopifySignatureHeader, nil
	case models.ProviderStripe:
		return StripeSignatureHeader, nil
	case models.ProviderWooCommerce:
		return WooCommerceSignatureHeader, nil
	}
	return "", models.ErrUnknownProvider
}

// Verify checks a provider signature against the raw request body. It must
// see the body exactly as received; a reserialized JSON document will not
// match what the provider signed.
func (v *WebhookVerifier) Verify(provider models.Provider, body []byte, signature string) error {
	secret, ok := v.SecretFor(provider)
	if !ok {
		return fmt.Errorf("no secret configured for provider %s", provider)
	}

	switch provider {
	case models.ProviderMeta:
		return v.verifyHexPrefixed(body, signature, secret)
	case models.ProviderShopify, models.ProviderWooCommerce:
		return v.verifyBase64(body, signature, secret)
	case models.ProviderStripe:
		return v.verifyStripe(body, signature, secret)
	}
	return models.ErrUnknownProvider
}

// verifyHexPrefixed handles Meta's "sha256=<hex>" form.
func (v *WebhookVerifier) verifyHexPrefixed(body []byte, signature, secret string) error {
	if !strings.HasPrefix(signature, metaSignaturePrefix) {
		return models.ErrSignatureInvalid
	}
	expected := hex.EncodeToString(computeHMAC(body, secret))
	if !hmac.Equal([]byte(signature[len(metaSignaturePrefix):]), []byte(expected)) {
		return models.ErrSignatureInvalid
	}
	return nil
}

// verifyBase64 handles Shopify and WooCommerce, which send the raw HMAC
// base64-encoded.
func (v *WebhookVerifier) verifyBase64(body []byte, signature, secret string) error {
	expected := base64.StdEncoding.EncodeToString(computeHMAC(body, secret))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return models.ErrSignatureInvalid
	}
	return nil
}

// verifyStripe parses the "t=<unix>,v1=<hex>" composite header, rejects
// stale timestamps before doing any HMAC work, and signs "{t}.{body}".
func (v *WebhookVerifier) verifyStripe(body []byte, signature, secret string) error {
	timestamp, candidates, err := parseStripeHeader(signature)
	if err != nil {
		return err
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance {
		return models.ErrStaleTimestamp
	}

	signed := fmt.Sprintf("%d.%s", timestamp, body)
	expected := hex.EncodeToString(computeHMAC([]byte(signed), secret))
	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return models.ErrSignatureInvalid
}

func parseStripeHeader(header string) (timestamp int64, v1 []string, err error) {
	timestamp = -1
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp, err = strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, models.ErrSignatureInvalid
			}
		case "v1":
			v1 = append(v1, kv[1])
		}
	}
	if timestamp < 0 || len(v1) == 0 {
		return 0, nil, models.ErrSignatureInvalid
	}
	return timestamp, v1, nil
}

func computeHMAC(payload []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return h.Sum(nil)
}
