package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
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
	return "stripe"
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

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return billingdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return billingdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return billingdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*billingdomain.SubscriptionEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "customer.subscription.created", "customer.subscription.updated":
		return a.parseSubscription(event)
	case "customer.subscription.deleted":
		return a.parseCancellation(event)
	default:
		return nil, billingdomain.ErrEventIgnored
	}
}

func (a *Adapter) parseSubscription(event stripeEvent) (*billingdomain.SubscriptionEvent, error) {
	sub := event.Data.Object
	licenseKey := strings.TrimSpace(sub.Metadata["license_key"])
	if licenseKey == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(sub.Status) {
	case "active", "trialing":
	case "canceled", "unpaid", "incomplete_expired":
		return &billingdomain.SubscriptionEvent{
			Provider:   "stripe",
			Type:       billingdomain.EventSubscriptionCancelled,
			LicenseKey: licenseKey,
		}, nil
	default:
		return nil, billingdomain.ErrEventIgnored
	}

	out := &billingdomain.SubscriptionEvent{
		Provider:   "stripe",
		Type:       billingdomain.EventSubscriptionActive,
		LicenseKey: licenseKey,
		Plan:       strings.TrimSpace(sub.Metadata["plan"]),
	}
	if sub.CurrentPeriodEnd > 0 {
		expiresAt := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.ExpiresAt = &expiresAt
	}
	return out, nil
}

func (a *Adapter) parseCancellation(event stripeEvent) (*billingdomain.SubscriptionEvent, error) {
	licenseKey := strings.TrimSpace(event.Data.Object.Metadata["license_key"])
	if licenseKey == "" {
		return nil, billingdomain.ErrInvalidEvent
	}
	return &billingdomain.SubscriptionEvent{
		Provider:   "stripe",
		Type:       billingdomain.EventSubscriptionCancelled,
		LicenseKey: licenseKey,
	}, nil
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeSubscription `json:"object"`
	} `json:"data"`
}

type stripeSubscription struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			timestamp = pair[1]
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return "", nil, billingdomain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
