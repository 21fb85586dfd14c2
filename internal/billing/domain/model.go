package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

// EventType is a normalized billing outcome. Provider adapters map their
// native webhook vocabulary onto these two transitions.
type EventType string

const (
	EventSubscriptionActive    EventType = "subscription_active"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
)

// SubscriptionEvent is a provider-verified billing event ready to merge
// into license state.
type SubscriptionEvent struct {
	Provider   string
	Type       EventType
	LicenseKey string
	Plan       string
	ExpiresAt  *time.Time
}

// Adapter verifies and parses one provider's webhook payloads.
type Adapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*SubscriptionEvent, error)
}

// AdapterFactory builds adapters from stored provider configuration.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}

type AdapterConfig struct {
	WebhookSecret string
}

// ProviderConfig stores one provider's webhook secret, encrypted at rest.
type ProviderConfig struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Provider  string       `gorm:"type:text;not null;uniqueIndex:ux_billing_provider_configs_provider"`
	SecretEnc string       `gorm:"column:secret_enc;type:text;not null"`
	IsActive  bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ProviderConfig) TableName() string { return "billing_provider_configs" }

type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
	UpsertProviderConfig(ctx context.Context, provider, webhookSecret string) error
}

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrUnknownLicense   = errors.New("unknown_license")
	ErrInvalidSecret    = errors.New("invalid_secret")
)
