package payment

import (
	"go.uber.org/fx"

	"github.com/soundline/vocalis/internal/config"
	"github.com/soundline/vocalis/internal/payment/adapters"
	"github.com/soundline/vocalis/internal/payment/adapters/paddle"
	"github.com/soundline/vocalis/internal/payment/adapters/stripe"
)

var Module = fx.Module("payment",
	fx.Provide(provideRegistry),
)

func provideRegistry(cfg config.Config) *adapters.Registry {
	return adapters.NewRegistry(
		stripe.NewAdapter(cfg.Webhooks.Stripe),
		paddle.NewAdapter(cfg.Webhooks.Paddle),
	)
}
