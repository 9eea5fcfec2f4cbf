package webhookgate

import (
	"go.uber.org/fx"

	"github.com/soundline/vocalis/internal/config"
	"github.com/soundline/vocalis/internal/payment/adapters"
	"github.com/soundline/vocalis/internal/webhookgate/domain"
)

var Module = fx.Module("webhookgate",
	fx.Provide(
		providePolicy,
		provideRegistry,
		NewGate,
	),
)

func providePolicy(cfg config.Config) domain.Policy {
	return domain.Policy{
		RequireHTTPS:       cfg.Gate.RequireHTTPS,
		AllowedSources:     cfg.Gate.AllowedSources,
		MaxBodyBytes:       cfg.Gate.MaxBodyBytes,
		TimestampTolerance: cfg.Gate.TimestampTolerance,
		ReplayCapacity:     cfg.Gate.ReplayCapacity,
	}
}

// provideRegistry registers every payment adapter as a signature verifier,
// plus the voice provider's shared-secret scheme. Payment adapters satisfy
// the verifier contract directly.
func provideRegistry(cfg config.Config, payments *adapters.Registry) *Registry {
	verifiers := []domain.Verifier{
		NewSharedSecretVerifier("voice", "X-Voice-Signature", cfg.Webhooks.Voice),
	}
	for _, adapter := range payments.Adapters() {
		verifiers = append(verifiers, adapter)
	}
	return NewRegistry(verifiers...)
}
