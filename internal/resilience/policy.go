package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/reports-aggregator/internal/circuitbreaker"
	"github.com/reports-aggregator/internal/errors"
	"github.com/reports-aggregator/internal/logging"
)

// Call outcomes reported to the Recorder
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeTimeout     = "timeout"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCancelled   = "cancelled"
)

// Recorder receives call metrics. metrics.Metrics satisfies it.
type Recorder interface {
	RecordCall(operation, outcome string, duration time.Duration)
	RecordFallback(operation string)
}

// Settings configures one operation kind
type Settings struct {
	Timeout time.Duration
	// Fallback overrides the default fallback for the operation when set
	Fallback Fallback
}

type guard struct {
	breaker  *circuitbreaker.CircuitBreaker
	timeout  time.Duration
	fallback Fallback
}

// Policy is the immutable set of guards for all protected operation kinds
type Policy struct {
	guards   map[Operation]*guard
	recorder Recorder
}

// NewPolicy binds every configured operation to its breaker in the registry. recorder may be nil.
func NewPolicy(breakers *circuitbreaker.Registry, settings map[Operation]Settings, recorder Recorder) (*Policy, error) {
	if breakers == nil {
		return nil, fmt.Errorf("circuit breaker registry is required")
	}

	defaults := DefaultFallbacks()
	guards := make(map[Operation]*guard, len(settings))
	for op, s := range settings {
		if s.Timeout <= 0 {
			return nil, fmt.Errorf("operation '%s': timeout must be positive", op)
		}
		cb, err := breakers.Get(string(op))
		if err != nil {
			return nil, fmt.Errorf("operation '%s': %w", op, err)
		}
		fallback := s.Fallback
		if fallback == nil {
			fallback = defaults[op]
		}
		if fallback == nil {
			return nil, fmt.Errorf("operation '%s': no fallback configured", op)
		}
		guards[op] = &guard{breaker: cb, timeout: s.Timeout, fallback: fallback}
	}

	return &Policy{guards: guards, recorder: recorder}, nil
}

// Timeout returns the per-call budget of an operation, or zero when it is not configured
func (p *Policy) Timeout(op Operation) time.Duration {
	if g, ok := p.guards[op]; ok {
		return g.timeout
	}
	return 0
}

type result[T any] struct {
	value T
	err   error
}

// Execute runs fn under the timeout, circuit breaker and fallback configured for op.
// params identify the call in logs and error details only. The returned error is always a
// BackendUnavailable error produced by the operation's fallback.
//
// fn receives a context carrying the call deadline. Execute returns when the deadline passes
// even if fn ignores it; fn's eventual result is then discarded.
func Execute[T any](ctx context.Context, p *Policy, op Operation, params map[string]interface{}, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	g, ok := p.guards[op]
	if !ok {
		return zero, errors.NewInternalError(fmt.Sprintf("no resilience policy for operation '%s'", op), nil)
	}

	if err := g.breaker.Allow(); err != nil {
		p.recordCall(op, OutcomeCircuitOpen, 0)
		return zero, p.fallback(ctx, g, op, params, errors.NewCircuitOpenError(string(op), err))
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("panic in %s call: %v", op, r)}
			}
		}()
		v, err := fn(callCtx)
		done <- result[T]{value: v, err: err}
	}()

	var cause error
	select {
	case res := <-done:
		elapsed := time.Since(start)
		if res.err == nil {
			g.breaker.Record(true)
			p.recordCall(op, OutcomeSuccess, elapsed)
			return res.value, nil
		}
		if ctx.Err() != nil {
			g.breaker.Release()
			p.recordCall(op, OutcomeCancelled, elapsed)
			cause = res.err
			break
		}
		g.breaker.Record(false)
		if stderrors.Is(res.err, context.DeadlineExceeded) {
			p.recordCall(op, OutcomeTimeout, elapsed)
			cause = errors.NewTimeoutError(string(op), g.timeout)
		} else {
			p.recordCall(op, OutcomeFailure, elapsed)
			cause = res.err
		}

	case <-callCtx.Done():
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			g.breaker.Release()
			p.recordCall(op, OutcomeCancelled, elapsed)
			cause = ctx.Err()
		} else {
			g.breaker.Record(false)
			p.recordCall(op, OutcomeTimeout, elapsed)
			cause = errors.NewTimeoutError(string(op), g.timeout)
		}
	}

	return zero, p.fallback(ctx, g, op, params, cause)
}

func (p *Policy) fallback(ctx context.Context, g *guard, op Operation, params map[string]interface{}, cause error) error {
	fields := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		fields[k] = v
	}
	fields["operation"] = string(op)
	logging.FromContext(ctx).WithFields(fields).WithError(cause).Error("Fallback active for backend call")

	if p.recorder != nil {
		p.recorder.RecordFallback(string(op))
	}

	err := g.fallback(op, params, cause)
	if !errors.IsBackendUnavailable(err) {
		// custom fallbacks must not leak raw errors
		err = errors.NewBackendUnavailableError(string(op), fmt.Sprintf("%s backend call failed", op), cause)
	}
	if catErr := errors.Categorize(err); catErr != nil && len(params) > 0 {
		if catErr.Details == nil {
			catErr.Details = make(map[string]interface{}, len(params))
		}
		for k, v := range params {
			if _, exists := catErr.Details[k]; !exists {
				catErr.Details[k] = v
			}
		}
	}
	return err
}

func (p *Policy) recordCall(op Operation, outcome string, elapsed time.Duration) {
	if p.recorder != nil {
		p.recorder.RecordCall(string(op), outcome, elapsed)
	}
}
