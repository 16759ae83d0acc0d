package verify

import "context"

// Adapter is the contract every verification source implements. The engine
// treats adapters as untrusted plugins: results are sanitized before
// aggregation and failures never propagate past the dispatch layer.
type Adapter interface {
	// Name returns the unique adapter identifier used for registration,
	// selection, and result attribution.
	Name() string

	// Description returns a short human-readable summary for introspection.
	Description() string

	// Verify judges a single claim. extra carries optional caller-supplied
	// context for the claim and may be nil. Implementations should honor
	// ctx cancellation on a best-effort basis and return either a non-nil
	// Result or an error, never both nil.
	Verify(ctx context.Context, claim string, extra map[string]any) (*Result, error)

	// Available reports whether the adapter can currently serve requests.
	// It must be cheap, side-effect-free, and safe to call concurrently;
	// a health probe is fine, mutation is not.
	Available(ctx context.Context) bool
}
