package webhookgate

import (
	"strings"

	"github.com/soundline/vocalis/internal/webhookgate/domain"
)

// Registry maps provider names to their signature verifiers.
type Registry struct {
	verifiers map[string]domain.Verifier
}

func NewRegistry(verifiers ...domain.Verifier) *Registry {
	registry := &Registry{verifiers: map[string]domain.Verifier{}}
	for _, verifier := range verifiers {
		if verifier == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(verifier.Provider()))
		if provider == "" {
			continue
		}
		registry.verifiers[provider] = verifier
	}
	return registry
}

func (r *Registry) Find(provider string) (domain.Verifier, bool) {
	if r == nil {
		return nil, false
	}
	verifier, ok := r.verifiers[strings.ToLower(strings.TrimSpace(provider))]
	return verifier, ok
}
