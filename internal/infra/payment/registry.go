package payment

import (
	"fmt"
	"strings"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/ports/adapter"
)

// Registry is the single switch point mapping a provider name to its gateway
// adapter; per-provider branching lives nowhere else.
type Registry struct {
	gateways map[string]adapter.PaymentGateway
}

func NewRegistry(gws ...adapter.PaymentGateway) *Registry {
	m := make(map[string]adapter.PaymentGateway, len(gws))
	for _, gw := range gws {
		m[strings.ToLower(gw.Name())] = gw
	}
	return &Registry{gateways: m}
}

func (r *Registry) Resolve(provider string) (adapter.PaymentGateway, error) {
	gw, ok := r.gateways[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", provider, domain.ErrUnknownProvider)
	}
	return gw, nil
}

// Providers lists the registered gateway names.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		out = append(out, name)
	}
	return out
}
