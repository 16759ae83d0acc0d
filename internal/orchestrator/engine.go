package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dusk-indust/verity/internal/breaker"
	"github.com/dusk-indust/verity/internal/cache"
	"github.com/dusk-indust/verity/internal/config"
	"github.com/dusk-indust/verity/internal/registry"
	"github.com/dusk-indust/verity/internal/validators"
	"github.com/dusk-indust/verity/internal/verify"
)

// Engine is the public face of the verification core: adapter management,
// cached verification, and status introspection behind one type. Protocol
// front ends and the CLI talk to an Engine and nothing below it.
type Engine struct {
	cfg    *config.Config
	reg    *registry.Registry
	orch   *Orchestrator
	cache  *cache.Cache
	logger *slog.Logger
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithLogger installs a structured logger. Nil (the default) discards.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine builds an engine from cfg. A nil cfg means config.Default().
// The built-in validators are registered unless the config disables them;
// further adapters are registered by the caller through RegisterAdapter.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}

	e.reg = registry.New(cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown.Std())
	e.orch = New(e.reg, SettingsFrom(cfg), e.logger)

	if !cfg.Validators.Disabled {
		if err := e.registerBuiltins(); err != nil {
			return nil, err
		}
	}

	if !cfg.Cache.Disabled {
		store, err := buildStore(cfg.Cache)
		if err != nil {
			return nil, err
		}
		e.cache = cache.New(store, e.logger)
	}
	return e, nil
}

// buildStore picks the cache backend from config.
func buildStore(cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Backend == "redis" {
		return cache.NewRedisStore(cfg.RedisURL, cfg.TTL.Std())
	}
	return cache.NewMemoryStore(cfg.MaxEntries, cfg.TTL.Std()), nil
}

// registerBuiltins installs the contradiction detector and the pattern
// validator with their configured metadata.
func (e *Engine) registerBuiltins() error {
	contradiction := validators.NewContradiction(validators.ContradictionConfig{
		AntonymPairs: e.cfg.Validators.AntonymPairs,
	})
	pattern, err := validators.NewPatternValidator(validators.PatternConfig{
		Rules:     e.cfg.Validators.PatternRules,
		Threshold: e.cfg.Validators.PatternThreshold,
	})
	if err != nil {
		return err
	}

	for _, a := range []verify.Adapter{contradiction, pattern} {
		if err := e.RegisterAdapter(a, metadataFor(e.cfg, a.Name())); err != nil {
			return fmt.Errorf("registering built-in %s: %w", a.Name(), err)
		}
	}
	return nil
}

// metadataFor derives registry metadata for an adapter name from config.
func metadataFor(cfg *config.Config, name string) registry.Metadata {
	weight, timeout, enabled := cfg.AdapterMeta(name)
	return registry.Metadata{Weight: weight, Timeout: timeout, Enabled: enabled}
}

// Verify runs one claim through the cache and, on a miss, through the
// orchestrator. Claim validation happens before the cache is consulted so
// invalid input never occupies a cache slot.
func (e *Engine) Verify(ctx context.Context, claim string, opts Options) (*verify.Aggregated, error) {
	if e.cache == nil {
		return e.orch.Verify(ctx, claim, opts)
	}
	if err := e.orch.validateClaim(claim); err != nil {
		return nil, err
	}

	strategy := opts.Strategy
	if !strategy.Valid() {
		strategy = e.orch.settings.Strategy
	}
	key := cache.Key(claim, opts.Adapters, string(strategy))
	return e.cache.Do(ctx, key, func(ctx context.Context) (*verify.Aggregated, error) {
		return e.orch.Verify(ctx, claim, opts)
	})
}

// RegisterAdapter adds an adapter to the live registry. New requests see
// it on their next snapshot; in-flight requests do not.
func (e *Engine) RegisterAdapter(a verify.Adapter, meta registry.Metadata) error {
	if err := e.reg.Register(a, meta); err != nil {
		return err
	}
	// Registration-time probe: purely informational, a cold adapter may
	// warm up later.
	probeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !a.Available(probeCtx) {
		e.logger.Warn("adapter registered but probe refused", "adapter", a.Name())
	}
	return nil
}

// UnregisterAdapter removes an adapter and its breaker state. Requests
// holding an older snapshot finish against it unaffected.
func (e *Engine) UnregisterAdapter(name string) {
	e.reg.Unregister(name)
}

// SetAdapterEnabled flips an adapter's participation without losing its
// breaker state. It reports whether the adapter exists.
func (e *Engine) SetAdapterEnabled(name string, enabled bool) bool {
	return e.reg.SetEnabled(name, enabled)
}

// ListAdapters describes every registered adapter in registration order.
func (e *Engine) ListAdapters() []registry.Info {
	return e.reg.List()
}

// AdapterStatus reports each adapter's circuit breaker snapshot.
func (e *Engine) AdapterStatus() map[string]breaker.Status {
	infos := e.reg.List()
	status := make(map[string]breaker.Status, len(infos))
	for _, info := range infos {
		if entry, ok := e.reg.Get(info.Name); ok {
			status[info.Name] = entry.Breaker.Status()
		}
	}
	return status
}
