package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reports-aggregator/internal/circuitbreaker"
	"github.com/reports-aggregator/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct {
	mu        sync.Mutex
	outcomes  map[string][]string
	fallbacks map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{outcomes: map[string][]string{}, fallbacks: map[string]int{}}
}

func (m *mockRecorder) RecordCall(operation, outcome string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[operation] = append(m.outcomes[operation], outcome)
}

func (m *mockRecorder) RecordFallback(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks[operation]++
}

func newTestPolicy(t *testing.T, timeout time.Duration, volume int, recorder Recorder) (*Policy, *circuitbreaker.Registry) {
	t.Helper()

	configs := make([]*circuitbreaker.Config, 0, len(Operations()))
	settings := make(map[Operation]Settings, len(Operations()))
	for _, op := range Operations() {
		cfg := circuitbreaker.DefaultConfig(string(op))
		cfg.RequestVolumeThreshold = volume
		cfg.Delay = time.Hour
		configs = append(configs, cfg)
		settings[op] = Settings{Timeout: timeout}
	}

	registry, err := circuitbreaker.NewRegistry(configs, nil)
	require.NoError(t, err)
	policy, err := NewPolicy(registry, settings, recorder)
	require.NoError(t, err)
	return policy, registry
}

func TestExecuteSuccess(t *testing.T) {
	recorder := newMockRecorder()
	policy, _ := newTestPolicy(t, time.Second, 4, recorder)

	got, err := Execute(context.Background(), policy, OpBalances, map[string]interface{}{"customerId": "c-1"},
		func(ctx context.Context) ([]string, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline, "call context carries the per-call timeout")
			return []string{"a", "b"}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []string{OutcomeSuccess}, recorder.outcomes["balances"])
	assert.Zero(t, recorder.fallbacks["balances"])
}

func TestExecuteTransportFailureBecomesBackendUnavailable(t *testing.T) {
	recorder := newMockRecorder()
	policy, _ := newTestPolicy(t, time.Second, 4, recorder)
	transport := stderrors.New("dial tcp: connection refused")

	_, err := Execute(context.Background(), policy, OpCommissions, map[string]interface{}{"startDate": "2025-01-01"},
		func(ctx context.Context) (int, error) {
			return 0, transport
		})

	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.ErrorIs(t, err, transport)

	catErr := errors.Categorize(err)
	assert.Equal(t, FallbackMessage(OpCommissions), catErr.Message)
	assert.Equal(t, "commissions", catErr.Details["operation"])
	assert.Equal(t, "2025-01-01", catErr.Details["startDate"])
	assert.Equal(t, []string{OutcomeFailure}, recorder.outcomes["commissions"])
	assert.Equal(t, 1, recorder.fallbacks["commissions"])
}

func TestExecuteTimeoutWithUncooperativeCallee(t *testing.T) {
	policy, registry := newTestPolicy(t, 20*time.Millisecond, 4, nil)

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := Execute(context.Background(), policy, OpDailyAverageBalance, nil,
		func(ctx context.Context) (string, error) {
			<-release // ignores ctx
			return "late", nil
		})

	assert.Less(t, time.Since(start), time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.True(t, errors.IsTimeout(err))
	assert.Equal(t, FallbackMessage(OpDailyAverageBalance), errors.Categorize(err).Message)

	cb, err := registry.Get(string(OpDailyAverageBalance))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cb.GetStats().TotalFailures)
}

func TestExecuteDeadlineErrorFromCalleeIsTimeout(t *testing.T) {
	policy, _ := newTestPolicy(t, 10*time.Millisecond, 4, nil)

	_, err := Execute(context.Background(), policy, OpTransactions, nil,
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	assert.True(t, errors.IsTimeout(err))
	assert.True(t, errors.IsBackendUnavailable(err))
}

func TestExecuteShortCircuitsWhenOpen(t *testing.T) {
	recorder := newMockRecorder()
	policy, registry := newTestPolicy(t, time.Second, 4, recorder)

	var invocations atomic.Int32
	failing := func(ctx context.Context) (int, error) {
		invocations.Add(1)
		return 0, stderrors.New("500 Internal Server Error")
	}

	for i := 0; i < 4; i++ {
		_, err := Execute(context.Background(), policy, OpBalances, nil, failing)
		require.Error(t, err)
		assert.False(t, errors.IsCircuitOpen(err))
	}

	cb, err := registry.Get(string(OpBalances))
	require.NoError(t, err)
	require.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	for i := 0; i < 5; i++ {
		_, err := Execute(context.Background(), policy, OpBalances, nil, failing)
		require.Error(t, err)
		assert.True(t, errors.IsCircuitOpen(err))
		assert.True(t, errors.IsBackendUnavailable(err))
	}
	assert.Equal(t, int32(4), invocations.Load(), "open breaker never invokes the call")

	// other operation kinds are unaffected
	_, err = Execute(context.Background(), policy, OpTransactions, nil, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	assert.NoError(t, err)
	assert.Len(t, recorder.outcomes["balances"], 9)
	assert.Equal(t, OutcomeCircuitOpen, recorder.outcomes["balances"][8])
}

func TestExecuteCallerCancellation(t *testing.T) {
	policy, registry := newTestPolicy(t, time.Second, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, policy, OpSummaryCustomer, nil, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.False(t, errors.IsTimeout(err))

	cb, err := registry.Get(string(OpSummaryCustomer))
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, cb.GetState(), "cancellation is not a backend failure")
}

func TestExecuteRecoversPanics(t *testing.T) {
	policy, _ := newTestPolicy(t, time.Second, 4, nil)

	_, err := Execute(context.Background(), policy, OpSummaryAccounts, nil, func(ctx context.Context) (int, error) {
		panic("nil map")
	})

	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.Contains(t, err.Error(), "nil map")
}

func TestExecuteCustomFallback(t *testing.T) {
	registry, err := circuitbreaker.NewRegistry([]*circuitbreaker.Config{circuitbreaker.DefaultConfig("balances")}, nil)
	require.NoError(t, err)

	var gotParams map[string]interface{}
	policy, err := NewPolicy(registry, map[Operation]Settings{
		OpBalances: {
			Timeout: time.Second,
			Fallback: func(op Operation, params map[string]interface{}, cause error) error {
				gotParams = params
				return cause // raw error is wrapped by the policy
			},
		},
	}, nil)
	require.NoError(t, err)

	_, err = Execute(context.Background(), policy, OpBalances, map[string]interface{}{"customerId": "c-9"},
		func(ctx context.Context) (int, error) {
			return 0, stderrors.New("boom")
		})

	assert.True(t, errors.IsBackendUnavailable(err))
	assert.Equal(t, "c-9", gotParams["customerId"])
}

func TestExecuteUnknownOperation(t *testing.T) {
	policy, _ := newTestPolicy(t, time.Second, 4, nil)

	_, err := Execute(context.Background(), policy, Operation("unknown"), nil, func(ctx context.Context) (int, error) {
		t.Fatal("must not be called")
		return 0, nil
	})
	assert.True(t, errors.IsSystemError(err))
	assert.False(t, errors.IsBackendUnavailable(err))
}

func TestNewPolicyValidation(t *testing.T) {
	registry, err := circuitbreaker.NewRegistry([]*circuitbreaker.Config{circuitbreaker.DefaultConfig("balances")}, nil)
	require.NoError(t, err)

	_, err = NewPolicy(nil, nil, nil)
	assert.Error(t, err)

	_, err = NewPolicy(registry, map[Operation]Settings{OpBalances: {Timeout: 0}}, nil)
	assert.ErrorContains(t, err, "timeout must be positive")

	_, err = NewPolicy(registry, map[Operation]Settings{OpCommissions: {Timeout: time.Second}}, nil)
	assert.ErrorContains(t, err, "not found")

	policy, err := NewPolicy(registry, map[Operation]Settings{OpBalances: {Timeout: 3 * time.Second}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, policy.Timeout(OpBalances))
	assert.Zero(t, policy.Timeout(OpCommissions))
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations() {
		parsed, err := ParseOperation(string(op))
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
	_, err := ParseOperation("DAB")
	assert.Error(t, err)

	fallbacks := DefaultFallbacks()
	for _, op := range Operations() {
		require.NotNil(t, fallbacks[op], "missing fallback for %s", op)
		err := fallbacks[op](op, nil, stderrors.New("cause"))
		assert.True(t, errors.IsBackendUnavailable(err))
		assert.Equal(t, FallbackMessage(op), errors.Categorize(err).Message)
	}
	assert.Equal(t, FallbackMessage(OpSummaryCustomer), FallbackMessage(OpSummaryAccounts))
	assert.Contains(t, FallbackMessage(Operation("other")), "other")
}
