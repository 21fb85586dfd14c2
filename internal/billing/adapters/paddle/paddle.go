package paddle

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	billingdomain "github.com/glowpress/keyline/internal/billing/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "paddle"
}

func (f *Factory) NewAdapter(cfg billingdomain.AdapterConfig) (billingdomain.Adapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, billingdomain.ErrInvalidSecret
	}
	return &Adapter{webhookSecret: secret}, nil
}

type Adapter struct {
	webhookSecret string
}

// Verify checks the Paddle-Signature header: "ts=<unix>;h1=<hmac>" where the
// signature is HMAC-SHA256 over "<ts>:<payload>".
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Paddle-Signature"))
	if sigHeader == "" {
		return billingdomain.ErrInvalidSignature
	}

	var timestamp, signature string
	for _, part := range strings.Split(sigHeader, ";") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "ts":
			timestamp = pair[1]
		case "h1":
			signature = pair[1]
		}
	}
	if timestamp == "" || signature == "" {
		return billingdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(timestamp + ":" + string(payload)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return billingdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*billingdomain.SubscriptionEvent, error) {
	var event paddleEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.EventID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	licenseKey := strings.TrimSpace(event.Data.CustomData.LicenseKey)

	switch strings.TrimSpace(event.EventType) {
	case "subscription.activated", "subscription.updated":
		if licenseKey == "" {
			return nil, billingdomain.ErrInvalidEvent
		}
		if strings.TrimSpace(event.Data.Status) != "active" {
			return nil, billingdomain.ErrEventIgnored
		}
		out := &billingdomain.SubscriptionEvent{
			Provider:   "paddle",
			Type:       billingdomain.EventSubscriptionActive,
			LicenseKey: licenseKey,
			Plan:       strings.TrimSpace(event.Data.CustomData.Plan),
		}
		if ends := strings.TrimSpace(event.Data.CurrentBillingPeriod.EndsAt); ends != "" {
			expiresAt, err := time.Parse(time.RFC3339, ends)
			if err != nil {
				return nil, billingdomain.ErrInvalidPayload
			}
			expiresAt = expiresAt.UTC()
			out.ExpiresAt = &expiresAt
		}
		return out, nil
	case "subscription.canceled":
		if licenseKey == "" {
			return nil, billingdomain.ErrInvalidEvent
		}
		return &billingdomain.SubscriptionEvent{
			Provider:   "paddle",
			Type:       billingdomain.EventSubscriptionCancelled,
			LicenseKey: licenseKey,
		}, nil
	default:
		return nil, billingdomain.ErrEventIgnored
	}
}

type paddleEvent struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID                   string `json:"id"`
		Status               string `json:"status"`
		CurrentBillingPeriod struct {
			EndsAt string `json:"ends_at"`
		} `json:"current_billing_period"`
		CustomData struct {
			LicenseKey string `json:"license_key"`
			Plan       string `json:"plan"`
		} `json:"custom_data"`
	} `json:"data"`
}
