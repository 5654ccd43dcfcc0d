// Package circuitbreaker implements a lock-free, count-based rolling window circuit breaker.
package circuitbreaker

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/reports-aggregator/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the service has recovered
	StateHalfOpen State = "half_open"
)

const (
	stateClosed int32 = iota
	stateOpen
	stateHalfOpen
)

const (
	slotEmpty uint32 = iota
	slotSuccess
	slotFailure
)

// The breaker state and its half-open probe counters share one atomic word, so entering
// half-open resets the counters in the same step that changes the state.
// Layout: state in bits 62-63, probe successes in bits 32-61, admitted probes in bits 0-31.
const (
	stateShift   = 62
	successShift = 32
	successMask  = 1<<30 - 1
	admittedMask = 1<<32 - 1
)

func pack(state int32, successes, admitted uint32) uint64 {
	return uint64(state)<<stateShift | uint64(successes&successMask)<<successShift | uint64(admitted)
}

func unpack(w uint64) (state int32, successes, admitted uint32) {
	return int32(w >> stateShift), uint32(w>>successShift) & successMask, uint32(w & admittedMask)
}

var (
	closedWord = pack(stateClosed, 0, 0)
	openWord   = pack(stateOpen, 0, 0)
)

func stateName(s int32) State {
	switch s {
	case stateOpen:
		return StateOpen
	case stateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Default configuration
const (
	DefaultRequestVolumeThreshold = 20
	DefaultFailureRatio           = 0.5
	DefaultDelay                  = 5 * time.Second
	DefaultSuccessThreshold       = 1
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when the half-open probe allowance is used up
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Config configures a circuit breaker
type Config struct {
	Name string
	// RequestVolumeThreshold is the size of the rolling window of call outcomes
	RequestVolumeThreshold int
	// FailureRatio opens the breaker once failures/window reaches it (0.0-1.0]
	FailureRatio float64
	// Delay is how long the breaker stays open before admitting probes
	Delay time.Duration
	// SuccessThreshold is the number of probe successes needed to close again
	SuccessThreshold int
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                   name,
		RequestVolumeThreshold: DefaultRequestVolumeThreshold,
		FailureRatio:           DefaultFailureRatio,
		Delay:                  DefaultDelay,
		SuccessThreshold:       DefaultSuccessThreshold,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RequestVolumeThreshold < 1 {
		return errors.New("request volume threshold must be at least 1")
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		return errors.New("failure ratio must be in (0, 1]")
	}
	if c.Delay <= 0 {
		return errors.New("delay must be positive")
	}
	if c.SuccessThreshold < 1 {
		return errors.New("success threshold must be at least 1")
	}
	return nil
}

// StateChangeFunc is invoked after every state transition
type StateChangeFunc func(name string, from, to State)

// CircuitBreaker guards one operation kind. All mutable state is atomic, so a single breaker
// can be shared by any number of concurrently in-flight calls without locking.
type CircuitBreaker struct {
	name             string
	failureRatio     float64
	delay            time.Duration
	successThreshold uint32
	onStateChange    StateChangeFunc
	now              func() time.Time

	word     atomic.Uint64
	openedAt atomic.Int64 // unix nanoseconds of the last transition to open

	// rolling window of the last len(window) outcomes
	window []atomic.Uint32
	cursor atomic.Uint64

	totalCalls      atomic.Int64
	totalFailures   atomic.Int64
	totalRejected   atomic.Int64
	lastStateChange atomic.Int64
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             config.Name,
		failureRatio:     config.FailureRatio,
		delay:            config.Delay,
		successThreshold: uint32(config.SuccessThreshold),
		now:              time.Now,
		window:           make([]atomic.Uint32, config.RequestVolumeThreshold),
	}
	cb.lastStateChange.Store(cb.now().UnixNano())
	return cb
}

// Name returns the operation kind guarded by this breaker
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// OnStateChange registers a hook invoked after each transition
func (cb *CircuitBreaker) OnStateChange(fn StateChangeFunc) {
	cb.onStateChange = fn
}

// Allow reports whether a call may proceed. It must be paired with exactly one call to
// Record or Release when it returns nil.
func (cb *CircuitBreaker) Allow() error {
	for {
		w := cb.word.Load()
		state, successes, admitted := unpack(w)
		switch state {
		case stateClosed:
			return nil

		case stateOpen:
			if cb.now().UnixNano()-cb.openedAt.Load() < int64(cb.delay) {
				cb.totalRejected.Add(1)
				return ErrCircuitOpen
			}
			// Delay elapsed; one caller wins the transition, everyone re-evaluates
			if cb.word.CompareAndSwap(w, pack(stateHalfOpen, 0, 0)) {
				cb.transition(stateOpen, stateHalfOpen)
			}

		case stateHalfOpen:
			if admitted >= cb.successThreshold {
				cb.totalRejected.Add(1)
				return ErrTooManyRequests
			}
			if cb.word.CompareAndSwap(w, pack(stateHalfOpen, successes, admitted+1)) {
				return nil
			}
		}
	}
}

// Record stores the outcome of a call admitted by Allow
func (cb *CircuitBreaker) Record(success bool) {
	cb.totalCalls.Add(1)
	if !success {
		cb.totalFailures.Add(1)
	}

	for {
		w := cb.word.Load()
		state, successes, admitted := unpack(w)
		switch state {
		case stateHalfOpen:
			if !success {
				if cb.trip(w) {
					return
				}
				continue
			}
			successes++
			if successes >= cb.successThreshold {
				if cb.word.CompareAndSwap(w, closedWord) {
					cb.clearWindow()
					cb.transition(stateHalfOpen, stateClosed)
					return
				}
				continue
			}
			if cb.word.CompareAndSwap(w, pack(stateHalfOpen, successes, admitted)) {
				return
			}

		case stateClosed:
			outcome := slotSuccess
			if !success {
				outcome = slotFailure
			}
			idx := cb.cursor.Add(1) - 1
			cb.window[idx%uint64(len(cb.window))].Store(outcome)

			if !success && cb.shouldOpen() {
				cb.trip(closedWord)
			}
			return

		default:
			// late completion of a call admitted before the breaker opened
			return
		}
	}
}

// Release gives back an admission from Allow without recording an outcome, for calls abandoned
// by their caller. A half-open probe slot becomes available again.
func (cb *CircuitBreaker) Release() {
	for {
		w := cb.word.Load()
		state, successes, admitted := unpack(w)
		if state != stateHalfOpen || admitted == 0 {
			return
		}
		if cb.word.CompareAndSwap(w, pack(stateHalfOpen, successes, admitted-1)) {
			return
		}
	}
}

// shouldOpen reports whether the window is full and at or above the failure ratio
func (cb *CircuitBreaker) shouldOpen() bool {
	size := len(cb.window)
	if cb.cursor.Load() < uint64(size) {
		return false
	}

	failures := 0
	recorded := 0
	for i := range cb.window {
		switch cb.window[i].Load() {
		case slotFailure:
			failures++
			recorded++
		case slotSuccess:
			recorded++
		}
	}
	if recorded < size {
		return false
	}
	return float64(failures)/float64(size) >= cb.failureRatio
}

// trip opens the breaker if its word is still from, and reports whether it did
func (cb *CircuitBreaker) trip(from uint64) bool {
	// openedAt must be visible before the open state is
	cb.openedAt.Store(cb.now().UnixNano())
	if !cb.word.CompareAndSwap(from, openWord) {
		return false
	}
	state, _, _ := unpack(from)
	cb.transition(state, stateOpen)
	return true
}

func (cb *CircuitBreaker) clearWindow() {
	for i := range cb.window {
		cb.window[i].Store(slotEmpty)
	}
	cb.cursor.Store(0)
}

func (cb *CircuitBreaker) transition(from, to int32) {
	cb.lastStateChange.Store(cb.now().UnixNano())

	logger := logging.WithFields(map[string]interface{}{
		"circuitBreaker": cb.name,
		"from":           stateName(from),
		"state":          stateName(to),
	})
	switch to {
	case stateOpen:
		logger.Warn("Circuit breaker opened")
	default:
		logger.Info("Circuit breaker state changed")
	}

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, stateName(from), stateName(to))
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	state, _, _ := unpack(cb.word.Load())
	return stateName(state)
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	WindowSize      int       `json:"windowSize"`
	WindowFailures  int       `json:"windowFailures"`
	WindowCalls     int       `json:"windowCalls"`
	FailureRate     float64   `json:"failureRate"`
	TotalCalls      int64     `json:"totalCalls"`
	TotalFailures   int64     `json:"totalFailures"`
	RejectedCalls   int64     `json:"rejectedCalls"`
	LastStateChange time.Time `json:"lastStateChange"`
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() *Stats {
	stats := &Stats{
		Name:            cb.name,
		State:           cb.GetState(),
		WindowSize:      len(cb.window),
		TotalCalls:      cb.totalCalls.Load(),
		TotalFailures:   cb.totalFailures.Load(),
		RejectedCalls:   cb.totalRejected.Load(),
		LastStateChange: time.Unix(0, cb.lastStateChange.Load()).UTC(),
	}
	for i := range cb.window {
		switch cb.window[i].Load() {
		case slotFailure:
			stats.WindowFailures++
			stats.WindowCalls++
		case slotSuccess:
			stats.WindowCalls++
		}
	}
	if stats.WindowCalls > 0 {
		stats.FailureRate = float64(stats.WindowFailures) / float64(stats.WindowCalls)
	}
	return stats
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	from, _, _ := unpack(cb.word.Swap(closedWord))
	cb.clearWindow()
	if from != stateClosed {
		cb.transition(from, stateClosed)
	}
}

// ForceOpen manually forces the circuit breaker to open state
func (cb *CircuitBreaker) ForceOpen() {
	cb.openedAt.Store(cb.now().UnixNano())
	from, _, _ := unpack(cb.word.Swap(openWord))
	if from != stateOpen {
		cb.transition(from, stateOpen)
	}
}
