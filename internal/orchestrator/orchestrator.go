// Package orchestrator coordinates a verification request end to end: it
// snapshots the adapter registry, fans the claim out to every usable
// adapter under bounded concurrency, isolates per-adapter failures behind
// circuit breakers, and hands whatever settles in time to the aggregator.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dusk-indust/verity/internal/aggregate"
	"github.com/dusk-indust/verity/internal/config"
	"github.com/dusk-indust/verity/internal/registry"
	"github.com/dusk-indust/verity/internal/retry"
	"github.com/dusk-indust/verity/internal/verify"
)

// Options narrows one verification request. The zero value means: every
// enabled adapter, the engine's default strategy, no extra context.
type Options struct {
	// Adapters restricts dispatch to the named adapters. A name that is
	// not registered at all fails the request with ErrAdapterNotFound; a
	// registered-but-disabled name is reported unavailable instead.
	Adapters []string

	// Strategy overrides the engine's default aggregation strategy.
	Strategy aggregate.Strategy

	// Context is opaque caller-supplied context passed through to every
	// adapter's Verify call.
	Context map[string]any
}

// Settings carries the dispatch knobs, usually derived from a
// config.Config.
type Settings struct {
	DefaultTimeout time.Duration
	OverallTimeout time.Duration
	MaxConcurrency int
	MaxClaimLength int
	Strategy       aggregate.Strategy
	Fallback       config.Fallback
	Retry          retry.Policy
}

// SettingsFrom maps a validated config onto dispatch settings.
func SettingsFrom(cfg *config.Config) Settings {
	strategy, _ := aggregate.Parse(cfg.Strategy)
	return Settings{
		DefaultTimeout: cfg.DefaultTimeout.Std(),
		OverallTimeout: cfg.OverallTimeout.Std(),
		MaxConcurrency: cfg.MaxConcurrency,
		MaxClaimLength: cfg.MaxClaimLength,
		Strategy:       strategy,
		Fallback:       cfg.Fallback,
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay.Std(),
			MaxDelay:    cfg.Retry.MaxDelay.Std(),
			Jitter:      cfg.Retry.Jitter,
		},
	}
}

// Orchestrator runs verification requests against a registry. It owns the
// concurrency cap shared by all requests; everything else is per-request
// state on the stack.
type Orchestrator struct {
	reg      *registry.Registry
	settings Settings
	sem      *semaphore.Weighted
	logger   *slog.Logger
	now      func() time.Time
}

// New builds an orchestrator over reg. A nil logger discards; zero-value
// settings fields fall back to safe defaults.
func New(reg *registry.Registry, settings Settings, logger *slog.Logger) *Orchestrator {
	if settings.DefaultTimeout <= 0 {
		settings.DefaultTimeout = 5 * time.Second
	}
	if settings.OverallTimeout <= 0 {
		settings.OverallTimeout = 15 * time.Second
	}
	if settings.MaxConcurrency < 1 {
		settings.MaxConcurrency = 10
	}
	if settings.MaxClaimLength < 1 {
		settings.MaxClaimLength = 4096
	}
	if !settings.Strategy.Valid() {
		settings.Strategy = aggregate.DefaultStrategy
	}
	if settings.Fallback == "" {
		settings.Fallback = config.FallbackPartial
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		reg:      reg,
		settings: settings,
		sem:      semaphore.NewWeighted(int64(settings.MaxConcurrency)),
		logger:   logger,
		now:      time.Now,
	}
}

// Verify runs one claim through the full pipeline: validate, select
// candidates, dispatch, aggregate. Per-adapter failures never surface as
// errors; they show up in the result's Unavailable list and Partial flag.
// The only errors are ErrInvalidClaim, ErrAdapterNotFound, and, under the
// fail fallback, ErrAllAdaptersFailed.
func (o *Orchestrator) Verify(ctx context.Context, claim string, opts Options) (*verify.Aggregated, error) {
	start := o.now()
	requestID := uuid.NewString()

	if err := o.validateClaim(claim); err != nil {
		return nil, err
	}

	candidates, unavailable, err := o.selectCandidates(opts)
	if err != nil {
		return nil, err
	}

	strategy := opts.Strategy
	if !strategy.Valid() {
		strategy = o.settings.Strategy
	}

	results, failed := o.dispatch(ctx, requestID, claim, opts.Context, candidates)
	unavailable = append(unavailable, failed...)

	if len(results) == 0 && o.settings.Fallback == config.FallbackFail {
		return nil, fmt.Errorf("%w: %d adapters unavailable", verify.ErrAllAdaptersFailed, len(unavailable))
	}

	weights := make(map[string]float64, len(candidates))
	for _, e := range candidates {
		weights[e.Adapter.Name()] = e.Meta.Weight
	}

	agg := aggregate.Combine(aggregate.Input{
		Claim:       claim,
		Strategy:    strategy,
		Results:     results,
		Weights:     weights,
		Unavailable: unavailable,
	})
	agg.RequestID = requestID
	agg.ProcessingTime = o.now().Sub(start)

	if o.settings.Fallback == config.FallbackIgnore {
		agg.Partial = false
		agg.Unavailable = nil
	}

	o.logger.Debug("verification settled",
		"request_id", requestID,
		"overall", agg.Overall,
		"confidence", agg.Confidence,
		"sources", len(agg.Sources),
		"unavailable", len(unavailable),
		"elapsed", agg.ProcessingTime)
	return agg, nil
}

// validateClaim rejects blank or oversized claims before any adapter work.
func (o *Orchestrator) validateClaim(claim string) error {
	if strings.TrimSpace(claim) == "" {
		return fmt.Errorf("%w: claim is empty", verify.ErrInvalidClaim)
	}
	if len(claim) > o.settings.MaxClaimLength {
		return fmt.Errorf("%w: claim exceeds %d bytes", verify.ErrInvalidClaim, o.settings.MaxClaimLength)
	}
	return nil
}

// selectCandidates snapshots the registry and applies the caller's adapter
// selection. Names missing from the registry entirely fail the request;
// names that are registered but excluded from the snapshot (disabled) are
// reported as unavailable.
func (o *Orchestrator) selectCandidates(opts Options) (candidates []registry.Entry, unavailable []string, err error) {
	snap := o.reg.Snapshot()
	if len(opts.Adapters) == 0 {
		return snap, nil, nil
	}

	requested := make(map[string]bool, len(opts.Adapters))
	for _, name := range opts.Adapters {
		if _, ok := o.reg.Get(name); !ok {
			return nil, nil, fmt.Errorf("%w: %q", verify.ErrAdapterNotFound, name)
		}
		requested[name] = true
	}

	for _, e := range snap {
		if requested[e.Adapter.Name()] {
			candidates = append(candidates, e)
			delete(requested, e.Adapter.Name())
		}
	}
	// Whatever is left was requested but disabled.
	for name := range requested {
		unavailable = append(unavailable, name)
	}
	return candidates, unavailable, nil
}
