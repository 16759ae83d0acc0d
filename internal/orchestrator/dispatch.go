package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusk-indust/verity/internal/registry"
	"github.com/dusk-indust/verity/internal/verify"
)

// settled is one adapter task's outcome, delivered by its supervisor.
type settled struct {
	name   string
	result verify.Result
	err    error
}

// dispatch fans the claim out to every candidate whose breaker admits the
// call and collects whatever settles before the overall deadline. Tasks
// still running at the deadline are abandoned: their supervisors settle the
// breakers whenever they finish, but their results are discarded and the
// adapter is reported unavailable.
func (o *Orchestrator) dispatch(ctx context.Context, requestID, claim string, extra map[string]any, candidates []registry.Entry) (results []verify.Result, unavailable []string) {
	overallCtx, cancel := context.WithTimeout(ctx, o.settings.OverallTimeout)
	defer cancel()

	// Buffered to task count so a supervisor finishing after the
	// collector has given up never blocks.
	outcomes := make(chan settled, len(candidates))
	launched := 0
	for _, entry := range candidates {
		name := entry.Adapter.Name()
		if !entry.Breaker.Allow() {
			o.logger.Debug("adapter skipped, circuit open",
				"request_id", requestID, "adapter", name)
			unavailable = append(unavailable, name)
			continue
		}
		launched++
		go o.supervise(overallCtx, outcomes, requestID, claim, extra, entry)
	}

	settledNames := make(map[string]bool, launched)
	for received := 0; received < launched; received++ {
		select {
		case s := <-outcomes:
			settledNames[s.name] = true
			if s.err != nil {
				o.logger.Warn("adapter failed",
					"request_id", requestID, "adapter", s.name, "cause", s.err)
				unavailable = append(unavailable, s.name)
				continue
			}
			results = append(results, s.result)
		case <-overallCtx.Done():
			// Overall budget spent. Abandon everything outstanding;
			// late outcomes drain into the buffered channel and are
			// never read.
			for _, entry := range candidates {
				name := entry.Adapter.Name()
				if !settledNames[name] && !contains(unavailable, name) {
					o.logger.Warn("adapter abandoned at deadline",
						"request_id", requestID, "adapter", name)
					unavailable = append(unavailable, name)
				}
			}
			return results, unavailable
		}
	}
	return results, unavailable
}

// callOutcome is what one adapter invocation produced, deadline or not.
type callOutcome struct {
	result *verify.Result
	err    error
}

// supervise runs one adapter task: acquire a dispatch slot, invoke the
// adapter under its own timeout and the retry policy, settle the breaker,
// and report the outcome. The invocation runs in an inner goroutine so the
// deadline holds even against an adapter that ignores its context: when
// the per-call budget expires first, the task settles as a timeout and
// whatever the call eventually returns is discarded. The breaker is always
// settled exactly once, by whichever side loses the race.
func (o *Orchestrator) supervise(ctx context.Context, outcomes chan<- settled, requestID, claim string, extra map[string]any, entry registry.Entry) {
	name := entry.Adapter.Name()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		// Never got to run; the adapter did not misbehave.
		entry.Breaker.RecordCanceled()
		outcomes <- settled{name: name, err: fmt.Errorf("%w: %s: queued past deadline", verify.ErrAdapterUnavailable, name)}
		return
	}

	timeout := entry.Meta.Timeout
	if timeout <= 0 {
		timeout = o.settings.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !entry.Adapter.Available(callCtx) {
		o.sem.Release(1)
		entry.Breaker.RecordCanceled()
		outcomes <- settled{name: name, err: fmt.Errorf("%w: %s: availability probe refused", verify.ErrAdapterUnavailable, name)}
		return
	}

	// The dispatch slot is released when the call actually returns, not
	// when the supervisor gives up on it: a stubborn adapter keeps
	// occupying capacity for as long as it really runs.
	done := make(chan callOutcome, 1)
	go func() {
		defer o.sem.Release(1)
		var result *verify.Result
		err := o.settings.Retry.Do(callCtx, func(attemptCtx context.Context) error {
			r, verr := entry.Adapter.Verify(attemptCtx, claim, extra)
			if verr != nil {
				return verr
			}
			if r == nil {
				return errors.New("adapter returned no result and no error")
			}
			result = r
			return nil
		})
		done <- callOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		switch {
		case out.err == nil:
			entry.Breaker.RecordSuccess()
			outcomes <- settled{name: name, result: out.result.Sanitize(name, o.now())}
		case ctx.Err() != nil:
			// The overall request ended, not the adapter's own budget.
			entry.Breaker.RecordCanceled()
			outcomes <- settled{name: name, err: fmt.Errorf("%w: %s", verify.ErrAdapterUnavailable, name)}
		case errors.Is(out.err, context.DeadlineExceeded):
			entry.Breaker.RecordFailure()
			outcomes <- settled{name: name, err: fmt.Errorf("%w: %s after %s", verify.ErrAdapterTimeout, name, timeout)}
		default:
			entry.Breaker.RecordFailure()
			outcomes <- settled{name: name, err: fmt.Errorf("%w: %s: %v", verify.ErrAdapterError, name, out.err)}
		}
	case <-callCtx.Done():
		// Deadline beat the call. The inner goroutine drains into the
		// buffered channel whenever it finishes; its result is never
		// read and never merged.
		if ctx.Err() != nil {
			entry.Breaker.RecordCanceled()
			outcomes <- settled{name: name, err: fmt.Errorf("%w: %s", verify.ErrAdapterUnavailable, name)}
			return
		}
		entry.Breaker.RecordFailure()
		outcomes <- settled{name: name, err: fmt.Errorf("%w: %s after %s", verify.ErrAdapterTimeout, name, timeout)}
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
