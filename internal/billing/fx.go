package billing

import (
	"github.com/glowpress/keyline/internal/billing/adapters"
	"github.com/glowpress/keyline/internal/billing/adapters/paddle"
	"github.com/glowpress/keyline/internal/billing/adapters/stripe"
	"github.com/glowpress/keyline/internal/billing/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
			paddle.NewFactory(),
		)
	}),
	fx.Provide(webhook.NewService),
)
