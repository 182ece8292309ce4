package carrier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// providerTypes is the static capability table: which delivery types each
// provider supports.
var providerTypes = map[string][]DeliveryType{
	"cdek":    {TypePVZ, TypeDoor},
	"ruspost": {TypePVZ, TypeDoor},
}

// ProviderAllowed reports whether the provider is in the capability table.
func ProviderAllowed(provider string) bool {
	_, ok := providerTypes[strings.ToLower(provider)]
	return ok
}

// TypeAllowed reports whether the delivery type is allowed for the provider.
func TypeAllowed(provider string, deliveryType DeliveryType) bool {
	for _, t := range providerTypes[strings.ToLower(provider)] {
		if t == deliveryType {
			return true
		}
	}
	return false
}

// Registry dispatches operations to registered delivery providers. It is
// pure routing: no state beyond the provider map, no side effects.
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name. The name must be in the capability table
// and the provider must be registered.
func (r *Registry) Get(name string) (Provider, error) {
	key := strings.ToLower(name)
	if !ProviderAllowed(key) {
		return nil, NewError("", KindInvalidInput,
			fmt.Sprintf("unknown delivery provider %q", name)).WithCause(ErrInvalidProvider)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	return nil, NewError("", KindInvalidInput,
		fmt.Sprintf("delivery provider %q is not enabled", name)).WithCause(ErrInvalidProvider)
}

// Names returns the names of all registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// SearchPickupPoints routes a pickup-point search to the matching provider.
func (r *Registry) SearchPickupPoints(ctx context.Context, provider string, req *SearchRequest) ([]PickupPoint, error) {
	p, err := r.Get(provider)
	if err != nil {
		return nil, err
	}
	return p.SearchPickupPoints(ctx, req)
}

// Calculate validates the provider/type combination and routes a tariff
// calculation. Provider errors propagate as-is to preserve carrier-specific
// diagnostic codes.
func (r *Registry) Calculate(ctx context.Context, provider string, req *CalculateRequest) (*TariffQuote, error) {
	p, err := r.dispatch(provider, req.Type)
	if err != nil {
		return nil, err
	}
	return p.Calculate(ctx, req)
}

// ListTariffs validates the provider/type combination and routes a tariff
// listing.
func (r *Registry) ListTariffs(ctx context.Context, provider string, req *CalculateRequest) ([]TariffQuote, error) {
	p, err := r.dispatch(provider, req.Type)
	if err != nil {
		return nil, err
	}
	return p.ListTariffs(ctx, req)
}

func (r *Registry) dispatch(provider string, deliveryType DeliveryType) (Provider, error) {
	p, err := r.Get(provider)
	if err != nil {
		return nil, err
	}
	if !TypeAllowed(p.Name(), deliveryType) {
		return nil, NewError(p.Name(), KindInvalidInput,
			fmt.Sprintf("delivery type %q not allowed for provider %q", deliveryType, p.Name())).
			WithCause(ErrInvalidDeliveryType)
	}
	return p, nil
}

// ListTariffsAll fetches tariffs from every registered provider that allows
// the requested delivery type, in parallel. Per-provider failures are
// collected, not fatal.
func (r *Registry) ListTariffsAll(ctx context.Context, req *CalculateRequest) (map[string][]TariffQuote, []error) {
	r.mu.RLock()
	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if TypeAllowed(p.Name(), req.Type) {
			providers = append(providers, p)
		}
	}
	r.mu.RUnlock()

	results := make(map[string][]TariffQuote, len(providers))
	var errs []error
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		p := p
		g.Go(func() error {
			tariffs, err := p.ListTariffs(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				return nil
			}
			results[p.Name()] = tariffs
			return nil
		})
	}
	g.Wait()

	return results, errs
}
