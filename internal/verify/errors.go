package verify

import "errors"

// Sentinel errors for the verification engine. Callers match with
// errors.Is; sites that raise them wrap with fmt.Errorf("%w: ...") to add
// the offending claim or adapter name.
var (
	// ErrInvalidClaim rejects empty, blank, or oversized claims before any
	// adapter is dispatched.
	ErrInvalidClaim = errors.New("verify: invalid claim")

	// ErrInvalidAdapter rejects registration of a nil adapter, an adapter
	// with an empty name, or a name already registered.
	ErrInvalidAdapter = errors.New("verify: invalid adapter")

	// ErrAdapterNotFound reports an explicitly requested adapter that is
	// not registered at all.
	ErrAdapterNotFound = errors.New("verify: adapter not found")

	// ErrAdapterUnavailable marks an adapter skipped without dispatch: its
	// circuit is open or its availability probe said no.
	ErrAdapterUnavailable = errors.New("verify: adapter unavailable")

	// ErrAdapterTimeout marks an adapter whose call exceeded its per-call
	// deadline.
	ErrAdapterTimeout = errors.New("verify: adapter timeout")

	// ErrAdapterError marks an adapter that returned an error from Verify.
	ErrAdapterError = errors.New("verify: adapter error")

	// ErrAllAdaptersFailed reports that no adapter produced a usable result
	// and the configured fallback demands failure.
	ErrAllAdaptersFailed = errors.New("verify: all adapters failed")

	// ErrInvalidConfiguration rejects an engine configuration that fails
	// validation.
	ErrInvalidConfiguration = errors.New("verify: invalid configuration")
)
