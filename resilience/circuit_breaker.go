// Package resilience provides the transient-failure machinery the cascade
// executor leans on: per-provider circuit breakers with a sliding failure
// window, and retry helpers with jittered exponential backoff.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cascadehq/cascaderouter/core"
)

// State is the circuit breaker's position in the closed → open → half-open
// cycle.
type State int

const (
	// StateClosed admits every call; failures accumulate in the window.
	StateClosed State = iota
	// StateOpen rejects every call until OpenTimeout has elapsed.
	StateOpen
	// StateHalfOpen admits a bounded number of probe calls; one failure
	// re-opens, enough successes close.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// MetricsCollector receives breaker state transitions and per-call
// outcomes. The default is a no-op.
type MetricsCollector interface {
	RecordStateChange(name string, from, to State)
	RecordOutcome(name string, success bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordStateChange(name string, from, to State) {}
func (noopMetrics) RecordOutcome(name string, success bool)       {}

// ErrorClassifier decides which errors count toward the failure rate.
// Caller mistakes (configuration, validation) and cancellation must not
// trip a breaker that exists to protect against a misbehaving provider.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier classifies against this module's error taxonomy:
// everything except configuration, validation, and cancellation counts.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	switch core.KindOf(err) {
	case core.KindConfiguration, core.KindValidation, core.KindCancelled:
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrContextCanceled) {
		return false
	}
	return true
}

// CircuitBreakerConfig configures one breaker. Start from DefaultConfig;
// the zero value fails validation.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and metrics, typically the
	// provider name it guards.
	Name string

	// WindowSize is the sliding interval over which the failure rate is
	// computed, divided into BucketCount buckets so old outcomes age out
	// incrementally rather than all at once.
	WindowSize  time.Duration
	BucketCount int

	// FailureRateThreshold opens the breaker when failures/total within
	// the window reaches it, but only once MinimumRequests outcomes have
	// been observed — one failed call out of one is not a signal.
	FailureRateThreshold float64
	MinimumRequests      int

	// OpenTimeout is how long the breaker stays open before admitting
	// half-open probes. HalfOpenProbes consecutive successes close it.
	OpenTimeout    time.Duration
	HalfOpenProbes int

	Classifier ErrorClassifier
	Metrics    MetricsCollector
	Logger     core.Logger
}

// DefaultConfig returns the breaker settings used for provider calls:
// open at 50% failures over a 30s window (min 5 calls), probe after 10s.
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		WindowSize:           30 * time.Second,
		BucketCount:          10,
		FailureRateThreshold: 0.5,
		MinimumRequests:      5,
		OpenTimeout:          10 * time.Second,
		HalfOpenProbes:       2,
	}
}

func (c *CircuitBreakerConfig) validate() error {
	if c.WindowSize <= 0 || c.BucketCount <= 0 {
		return core.NewError(core.KindConfiguration, "resilience.CircuitBreakerConfig", errBadWindow)
	}
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		return core.NewError(core.KindConfiguration, "resilience.CircuitBreakerConfig", errBadThreshold)
	}
	if c.OpenTimeout <= 0 || c.HalfOpenProbes <= 0 {
		return core.NewError(core.KindConfiguration, "resilience.CircuitBreakerConfig", errBadRecovery)
	}
	return nil
}

var (
	errBadWindow    = errors.New("window size and bucket count must be positive")
	errBadThreshold = errors.New("failure rate threshold must be in (0,1]")
	errBadRecovery  = errors.New("open timeout and half-open probes must be positive")
)

// bucket holds the outcome counts for one slice of the sliding window.
type bucket struct {
	start     time.Time
	successes int
	failures  int
}

// slidingWindow is a ring of time buckets. Not goroutine-safe; the owning
// breaker's mutex guards it.
type slidingWindow struct {
	buckets []bucket
	width   time.Duration
}

func newSlidingWindow(size time.Duration, count int) *slidingWindow {
	return &slidingWindow{
		buckets: make([]bucket, count),
		width:   size / time.Duration(count),
	}
}

// current returns the bucket covering now, recycling its slot if the ring
// has wrapped past it.
func (w *slidingWindow) current(now time.Time) *bucket {
	start := now.Truncate(w.width)
	idx := int((start.UnixNano() / int64(w.width)) % int64(len(w.buckets)))
	if idx < 0 {
		idx += len(w.buckets)
	}
	b := &w.buckets[idx]
	if !b.start.Equal(start) {
		*b = bucket{start: start}
	}
	return b
}

// totals sums outcomes across buckets still inside the window.
func (w *slidingWindow) totals(now time.Time) (successes, failures int) {
	cutoff := now.Add(-w.width * time.Duration(len(w.buckets)))
	for i := range w.buckets {
		b := &w.buckets[i]
		if b.start.IsZero() || b.start.Before(cutoff) {
			continue
		}
		successes += b.successes
		failures += b.failures
	}
	return successes, failures
}

func (w *slidingWindow) reset() {
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
}

// CircuitBreaker guards one provider. All methods are safe for concurrent
// use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu           sync.Mutex
	state        State
	window       *slidingWindow
	openedAt     time.Time
	probeBudget  int
	probeSuccess int
	clock        func() time.Time
}

// NewCircuitBreaker builds a breaker from cfg, rejecting malformed
// settings at construction so the hot path never re-validates.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := *cfg
	if c.Classifier == nil {
		c.Classifier = DefaultErrorClassifier
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	if c.Logger == nil {
		c.Logger = &core.NoOpLogger{}
	}
	return &CircuitBreaker{
		cfg:    c,
		state:  StateClosed,
		window: newSlidingWindow(c.WindowSize, c.BucketCount),
		clock:  time.Now,
	}, nil
}

// CanExecute reports whether a call may proceed right now. An open breaker
// whose OpenTimeout has elapsed transitions to half-open and admits a
// probe.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.clock().Sub(cb.openedAt) < cb.cfg.OpenTimeout {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.probeBudget--
		return true
	default: // StateHalfOpen
		if cb.probeBudget <= 0 {
			return false
		}
		cb.probeBudget--
		return true
	}
}

// RecordSuccess records one successful call, closing a half-open breaker
// once enough probes have succeeded.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.window.current(cb.clock()).successes++
	cb.cfg.Metrics.RecordOutcome(cb.cfg.Name, true)

	if cb.state == StateHalfOpen {
		cb.probeSuccess++
		if cb.probeSuccess >= cb.cfg.HalfOpenProbes {
			cb.window.reset()
			cb.transition(StateClosed)
		}
	}
}

// RecordFailure records one failed call. A half-open breaker re-opens on
// any failure; a closed breaker opens once the windowed failure rate
// crosses the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.clock()
	cb.window.current(now).failures++
	cb.cfg.Metrics.RecordOutcome(cb.cfg.Name, false)

	switch cb.state {
	case StateHalfOpen:
		cb.openedAt = now
		cb.transition(StateOpen)
	case StateClosed:
		successes, failures := cb.window.totals(now)
		total := successes + failures
		if total < cb.cfg.MinimumRequests {
			return
		}
		if float64(failures)/float64(total) >= cb.cfg.FailureRateThreshold {
			cb.openedAt = now
			cb.transition(StateOpen)
		}
	}
}

// Execute runs fn through the breaker: rejected with
// core.ErrCircuitBreakerOpen while open; otherwise the outcome is recorded
// according to the configured ErrorClassifier.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return core.NewError(core.KindCancelled, "resilience.CircuitBreaker.Execute", err)
	}
	if !cb.CanExecute() {
		return core.ErrCircuitBreakerOpen
	}
	err := fn()
	if cb.cfg.Classifier(err) {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return err
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition moves to next, logging and reporting the change. Must be
// called with cb.mu held.
func (cb *CircuitBreaker) transition(next State) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next
	if next == StateHalfOpen {
		cb.probeBudget = cb.cfg.HalfOpenProbes
		cb.probeSuccess = 0
	}
	cb.cfg.Metrics.RecordStateChange(cb.cfg.Name, prev, next)
	cb.cfg.Logger.Info("circuit breaker state change", map[string]interface{}{
		"breaker": cb.cfg.Name,
		"from":    prev.String(),
		"to":      next.String(),
	})
}
