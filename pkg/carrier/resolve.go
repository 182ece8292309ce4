package carrier

import (
	"context"
)

// Resolver attempts to map an input to a carrier-native destination code.
// An empty code with a nil error means "no match, try the next strategy".
type Resolver[T any] func(ctx context.Context, in T) (string, error)

// FirstSuccess runs resolvers in order and returns the first non-empty
// code. Individual resolver failures do not stop the chain; the last
// failure is returned alongside the empty result when every strategy
// comes up empty. Cancellation aborts the chain immediately.
func FirstSuccess[T any](ctx context.Context, in T, resolvers ...Resolver[T]) (string, error) {
	var lastErr error
	for _, resolve := range resolvers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := resolve(ctx, in)
		if err != nil {
			lastErr = err
			continue
		}
		if code != "" {
			return code, nil
		}
	}
	return "", lastErr
}
