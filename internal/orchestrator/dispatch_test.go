package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/verity/internal/breaker"
	"github.com/dusk-indust/verity/internal/registry"
	"github.com/dusk-indust/verity/internal/retry"
	"github.com/dusk-indust/verity/internal/verify"
)

func TestDispatch_OneAdapterTimesOut_PartialResult(t *testing.T) {
	settings := testSettings()
	settings.DefaultTimeout = 100 * time.Millisecond
	o, reg := newTestOrchestrator(t, settings,
		slow("sluggish", 2*time.Second),
		reporting("fast", verify.VerdictVerified, 0.8))

	got, err := o.Verify(context.Background(), "anything", Options{})

	require.NoError(t, err)
	assert.True(t, got.Partial)
	assert.Equal(t, []string{"sluggish"}, got.Unavailable)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "fast", got.Sources[0].SourceID)

	entry, ok := reg.Get("sluggish")
	require.True(t, ok)
	assert.Equal(t, 1, entry.Breaker.Status().ConsecutiveFailures, "a per-adapter timeout counts against the breaker")
}

func TestDispatch_ContextIgnoringAdapter_TimedOutAndDiscarded(t *testing.T) {
	// This adapter never looks at its context: it sleeps through the
	// per-call deadline and then reports a confident success.
	stubborn := &fakeAdapter{
		name: "stubborn",
		verifyFn: func(context.Context, string, map[string]any) (*verify.Result, error) {
			time.Sleep(600 * time.Millisecond)
			return &verify.Result{Verdict: verify.VerdictVerified, Confidence: 0.9}, nil
		},
	}
	settings := testSettings()
	settings.DefaultTimeout = 100 * time.Millisecond
	settings.OverallTimeout = 3 * time.Second
	o, reg := newTestOrchestrator(t, settings,
		stubborn,
		reporting("prompt", verify.VerdictVerified, 0.8))

	start := time.Now()
	got, err := o.Verify(context.Background(), "anything", Options{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, got.Partial)
	assert.Equal(t, []string{"stubborn"}, got.Unavailable)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "prompt", got.Sources[0].SourceID, "a result arriving after the deadline is never merged")
	assert.Less(t, elapsed, 500*time.Millisecond, "the collector must not wait out an adapter that ignores its deadline")

	entry, ok := reg.Get("stubborn")
	require.True(t, ok)
	assert.Equal(t, 1, entry.Breaker.Status().ConsecutiveFailures, "blowing the deadline counts against the breaker")

	// Even once the stubborn call finally returns, the settled result
	// stays as it was.
	time.Sleep(600 * time.Millisecond)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, []string{"stubborn"}, got.Unavailable)
}

func TestDispatch_OverallDeadline_AbandonsOutstandingTasks(t *testing.T) {
	settings := testSettings()
	settings.DefaultTimeout = 5 * time.Second
	settings.OverallTimeout = 100 * time.Millisecond
	o, reg := newTestOrchestrator(t, settings,
		slow("marathon", 2*time.Second),
		reporting("sprint", verify.VerdictVerified, 0.7))

	got, err := o.Verify(context.Background(), "anything", Options{})

	require.NoError(t, err)
	assert.Contains(t, got.Unavailable, "marathon")
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "sprint", got.Sources[0].SourceID, "late results are discarded, never merged")

	// Running out of the engine's budget is not the adapter's fault.
	entry, ok := reg.Get("marathon")
	require.True(t, ok)
	assert.Equal(t, breaker.StateClosed, entry.Breaker.Status().State)
	assert.Zero(t, entry.Breaker.Status().ConsecutiveFailures)
}

func TestDispatch_ConcurrencyCapRespected(t *testing.T) {
	var inFlight, peak atomic.Int64
	adapters := make([]verify.Adapter, 0, 6)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		adapters = append(adapters, &fakeAdapter{
			name: name,
			verifyFn: func(ctx context.Context, _ string, _ map[string]any) (*verify.Result, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				inFlight.Add(-1)
				return &verify.Result{Verdict: verify.VerdictVerified, Confidence: 0.5}, nil
			},
		})
	}
	settings := testSettings()
	settings.MaxConcurrency = 2
	settings.OverallTimeout = 5 * time.Second
	o, _ := newTestOrchestrator(t, settings, adapters...)

	got, err := o.Verify(context.Background(), "anything", Options{})

	require.NoError(t, err)
	assert.Len(t, got.Sources, 6, "queued dispatches still run to completion")
	assert.LessOrEqual(t, peak.Load(), int64(2), "in-flight calls must never exceed the cap")
}

func TestDispatch_BreakerOpens_SkipsWithoutDispatch(t *testing.T) {
	var healthy atomic.Bool
	flaky := &fakeAdapter{
		name: "flaky",
		verifyFn: func(context.Context, string, map[string]any) (*verify.Result, error) {
			if healthy.Load() {
				return &verify.Result{Verdict: verify.VerdictVerified, Confidence: 0.9}, nil
			}
			return nil, errors.New("backend down")
		},
	}

	reg := registry.New(3, 150*time.Millisecond)
	require.NoError(t, reg.Register(flaky, registry.DefaultMetadata()))
	o := New(reg, testSettings(), nil)

	// Three consecutive failures trip the breaker.
	for i := 0; i < 3; i++ {
		_, err := o.Verify(context.Background(), "anything", Options{})
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, flaky.calls.Load())

	// Within the cooldown the adapter is skipped without dispatch.
	got, err := o.Verify(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, flaky.calls.Load(), "open circuit must not dispatch")
	assert.Equal(t, []string{"flaky"}, got.Unavailable)

	// After the cooldown exactly one half-open trial goes through; its
	// success closes the circuit and resets the failure count.
	healthy.Store(true)
	time.Sleep(200 * time.Millisecond)
	got, err = o.Verify(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, flaky.calls.Load(), "half-open admits a single trial")
	require.Len(t, got.Sources, 1)

	entry, ok := reg.Get("flaky")
	require.True(t, ok)
	assert.Equal(t, breaker.StateClosed, entry.Breaker.Status().State)
	assert.Zero(t, entry.Breaker.Status().ConsecutiveFailures)
}

func TestDispatch_AvailabilityProbeRefusal_NotABreakerFailure(t *testing.T) {
	offline := &fakeAdapter{
		name:      "offline",
		available: func(context.Context) bool { return false },
	}
	o, reg := newTestOrchestrator(t, testSettings(), offline)

	got, err := o.Verify(context.Background(), "anything", Options{})

	require.NoError(t, err)
	assert.Equal(t, []string{"offline"}, got.Unavailable)
	assert.Zero(t, offline.calls.Load(), "probe refusal skips Verify")

	entry, ok := reg.Get("offline")
	require.True(t, ok)
	assert.Zero(t, entry.Breaker.Status().ConsecutiveFailures, "self-reported unavailability is not misbehavior")
}

func TestDispatch_RetryPolicy_RecoversTransientFailure(t *testing.T) {
	var attempts atomic.Int64
	wobbly := &fakeAdapter{
		name: "wobbly",
		verifyFn: func(context.Context, string, map[string]any) (*verify.Result, error) {
			if attempts.Add(1) == 1 {
				return nil, errors.New("connection reset by peer")
			}
			return &verify.Result{Verdict: verify.VerdictVerified, Confidence: 0.8}, nil
		},
	}
	settings := testSettings()
	settings.Retry = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	o, _ := newTestOrchestrator(t, settings, wobbly)

	got, err := o.Verify(context.Background(), "anything", Options{})

	require.NoError(t, err)
	assert.EqualValues(t, 2, attempts.Load())
	require.Len(t, got.Sources, 1)
	assert.False(t, got.Partial, "a recovered adapter contributed normally")
}

func TestDispatch_UnregisterMidFlight_SnapshotUnaffected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gated := &fakeAdapter{
		name: "gated",
		verifyFn: func(ctx context.Context, _ string, _ map[string]any) (*verify.Result, error) {
			close(started)
			select {
			case <-release:
				return &verify.Result{Verdict: verify.VerdictVerified, Confidence: 0.9}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	settings := testSettings()
	settings.OverallTimeout = 5 * time.Second
	settings.DefaultTimeout = 5 * time.Second
	o, reg := newTestOrchestrator(t, settings, gated)

	type outcome struct {
		agg *verify.Aggregated
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		agg, err := o.Verify(context.Background(), "anything", Options{})
		done <- outcome{agg, err}
	}()

	<-started
	require.True(t, reg.Unregister("gated"), "removal mid-flight")
	close(release)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.agg.Sources, 1, "the in-flight dispatch keeps its snapshot")
	assert.Equal(t, "gated", res.agg.Sources[0].SourceID)
	assert.Zero(t, reg.Len())
}
