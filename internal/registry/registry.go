// Package registry tracks the verification adapters known to the engine,
// along with their per-adapter settings and circuit breakers.
package registry

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dusk-indust/verity/internal/breaker"
	"github.com/dusk-indust/verity/internal/verify"
)

// Metadata carries the per-adapter settings supplied at registration.
type Metadata struct {
	// Weight scales the adapter's influence during aggregation. Values at
	// or below zero are normalized to 1 (an equal share).
	Weight float64
	// Timeout is the per-call budget. Zero means the engine default.
	Timeout time.Duration
	// Enabled adapters participate in dispatch. Disabled adapters stay
	// registered and keep their breaker state, but are skipped.
	Enabled bool
}

// DefaultMetadata returns the settings used when a caller has no opinion:
// weight 1, engine-default timeout, enabled.
func DefaultMetadata() Metadata {
	return Metadata{Weight: 1, Enabled: true}
}

// Info describes a registered adapter for introspection listings.
type Info struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Weight      float64       `json:"weight"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	Enabled     bool          `json:"enabled"`
}

// Entry pairs an adapter with its settings and circuit breaker. Entries
// returned by Get and Snapshot are copies; the Breaker pointer is shared so
// trial outcomes recorded during dispatch land on the live breaker.
type Entry struct {
	Adapter verify.Adapter
	Meta    Metadata
	Breaker *breaker.Breaker
}

// Registry is a concurrency-safe adapter store. A map keyed by adapter name
// holds the entries and a separate slice preserves registration order for
// deterministic listings and snapshots.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string

	breakerThreshold int
	breakerCooldown  time.Duration
}

// New returns an empty registry. Every adapter registered later gets its
// own breaker built from failureThreshold and cooldown.
func New(failureThreshold int, cooldown time.Duration) *Registry {
	return &Registry{
		entries:          make(map[string]*Entry),
		order:            make([]string, 0),
		breakerThreshold: failureThreshold,
		breakerCooldown:  cooldown,
	}
}

// Register adds an adapter under its own name. It returns
// verify.ErrInvalidAdapter for a nil adapter, a blank name, or a name that
// is already registered. Weight and timeout are normalized per Metadata.
func (r *Registry) Register(a verify.Adapter, meta Metadata) error {
	if a == nil {
		return fmt.Errorf("%w: nil adapter", verify.ErrInvalidAdapter)
	}
	name := a.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: adapter name is empty", verify.ErrInvalidAdapter)
	}
	if meta.Weight <= 0 || math.IsNaN(meta.Weight) {
		meta.Weight = 1
	}
	if meta.Timeout < 0 {
		meta.Timeout = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q is already registered", verify.ErrInvalidAdapter, name)
	}
	r.entries[name] = &Entry{
		Adapter: a,
		Meta:    meta,
		Breaker: breaker.New(r.breakerThreshold, r.breakerCooldown),
	}
	r.order = append(r.order, name)
	return nil
}

// Unregister removes an adapter and its breaker state. Removing an unknown
// name is a no-op; the return value reports whether anything was removed.
// Requests already holding a snapshot keep dispatching to the removed
// adapter until they finish.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// SetEnabled flips an adapter's participation in dispatch without touching
// its breaker state. It reports whether the adapter exists.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.Meta.Enabled = enabled
	return true
}

// Get returns a copy of the entry for name. The second return reports
// whether the adapter is registered at all, enabled or not.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List describes every registered adapter in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		infos = append(infos, Info{
			Name:        name,
			Description: e.Adapter.Description(),
			Weight:      e.Meta.Weight,
			Timeout:     e.Meta.Timeout,
			Enabled:     e.Meta.Enabled,
		})
	}
	return infos
}

// Snapshot returns copies of the enabled entries in registration order.
// The slice is immutable from the registry's point of view: concurrent
// Register, Unregister, and SetEnabled calls never affect a snapshot
// already taken, so an in-flight request works against a stable view.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if !e.Meta.Enabled {
			continue
		}
		snap = append(snap, *e)
	}
	return snap
}

// Len reports how many adapters are registered, enabled or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
