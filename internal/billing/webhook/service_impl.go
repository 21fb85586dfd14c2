package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/glowpress/keyline/internal/billing/adapters"
	billingdomain "github.com/glowpress/keyline/internal/billing/domain"
	"github.com/glowpress/keyline/internal/clock"
	licensedomain "github.com/glowpress/keyline/internal/license/domain"
	"github.com/glowpress/keyline/internal/observability/metrics"
	"github.com/glowpress/keyline/internal/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Vault       *vault.Vault
	Adapters    *adapters.Registry
	LicenseRepo licensedomain.Repository
	Metrics     *metrics.Metrics `optional:"true"`
}

// Service consumes billing provider webhooks and merges subscription
// outcomes into license state. The merge is status-only: it never touches
// hardware bindings or activation counters.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	vault       *vault.Vault
	adapters    *adapters.Registry
	licenseRepo licensedomain.Repository
	metrics     *metrics.Metrics
}

func NewService(p Params) billingdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("billing.webhook"),
		genID:       p.GenID,
		clock:       p.Clock,
		vault:       p.Vault,
		adapters:    p.Adapters,
		licenseRepo: p.LicenseRepo,
		metrics:     p.Metrics,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return billingdomain.ErrInvalidProvider
	}
	if !s.adapters.ProviderExists(provider) {
		return billingdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return billingdomain.ErrInvalidPayload
	}

	secret, err := s.loadWebhookSecret(ctx, provider)
	if err != nil {
		return err
	}

	adapter, err := s.adapters.NewAdapter(provider, billingdomain.AdapterConfig{WebhookSecret: secret})
	if err != nil {
		return err
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.metrics.RecordWebhookEvent(provider, "invalid_signature")
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, billingdomain.ErrEventIgnored) {
			s.metrics.RecordWebhookEvent(provider, "ignored")
			return nil
		}
		return err
	}

	if err := s.applyEvent(ctx, event); err != nil {
		return err
	}
	s.metrics.RecordWebhookEvent(provider, string(event.Type))
	return nil
}

func (s *Service) applyEvent(ctx context.Context, event *billingdomain.SubscriptionEvent) error {
	license, err := s.licenseRepo.FindByKey(ctx, s.db, event.LicenseKey)
	if err != nil {
		return fmt.Errorf("find license: %w", err)
	}
	if license == nil {
		s.log.Warn("billing event for unknown license",
			zap.String("provider", event.Provider),
			zap.String("event_type", string(event.Type)),
		)
		return billingdomain.ErrUnknownLicense
	}

	now := s.clock.Now()
	switch event.Type {
	case billingdomain.EventSubscriptionActive:
		license.Status = licensedomain.StatusActive
		if event.ExpiresAt != nil {
			license.ExpiresAt = event.ExpiresAt
		}
		if event.Plan != "" {
			license.Plan = event.Plan
		}
	case billingdomain.EventSubscriptionCancelled:
		// A cancelled license keeps its activations; it simply fails
		// future validations until reinstated.
		license.Status = licensedomain.StatusCancelled
	default:
		return billingdomain.ErrInvalidEvent
	}
	license.UpdatedAt = now

	if err := s.licenseRepo.Update(ctx, s.db, license); err != nil {
		return fmt.Errorf("update license: %w", err)
	}

	s.log.Info("subscription event applied",
		zap.String("provider", event.Provider),
		zap.String("event_type", string(event.Type)),
		zap.String("license_key", event.LicenseKey),
		zap.String("status", string(license.Status)),
	)
	return nil
}

func (s *Service) UpsertProviderConfig(ctx context.Context, provider, webhookSecret string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || !s.adapters.ProviderExists(provider) {
		return billingdomain.ErrInvalidProvider
	}
	webhookSecret = strings.TrimSpace(webhookSecret)
	if webhookSecret == "" {
		return billingdomain.ErrInvalidSecret
	}

	encrypted, err := s.vault.Encrypt(webhookSecret)
	if err != nil {
		return fmt.Errorf("encrypt webhook secret: %w", err)
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing billingdomain.ProviderConfig
		err := tx.Raw(
			`SELECT id, provider, secret_enc, is_active, created_at, updated_at
			 FROM billing_provider_configs WHERE provider = ?`,
			provider,
		).Scan(&existing).Error
		if err != nil {
			return err
		}

		if existing.ID != 0 {
			return tx.Exec(
				`UPDATE billing_provider_configs
				 SET secret_enc = ?, is_active = TRUE, updated_at = ?
				 WHERE provider = ?`,
				encrypted,
				now,
				provider,
			).Error
		}

		return tx.Exec(
			`INSERT INTO billing_provider_configs (id, provider, secret_enc, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, TRUE, ?, ?)`,
			s.genID.Generate(),
			provider,
			encrypted,
			now,
			now,
		).Error
	})
}

func (s *Service) loadWebhookSecret(ctx context.Context, provider string) (string, error) {
	var row billingdomain.ProviderConfig
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, provider, secret_enc, is_active, created_at, updated_at
		 FROM billing_provider_configs WHERE provider = ? AND is_active = TRUE`,
		provider,
	).Scan(&row).Error
	if err != nil {
		return "", err
	}
	if row.ID == 0 {
		return "", billingdomain.ErrProviderNotFound
	}

	secret, err := s.vault.Decrypt(row.SecretEnc)
	if err != nil {
		return "", fmt.Errorf("decrypt webhook secret: %w", err)
	}
	return secret, nil
}
