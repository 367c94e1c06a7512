package retry

import (
	"fmt"
	"sync"
	"time"

	dlerrors "dsllink/internal/errors"
)

// State is the circuit breaker's operational state.
type State int

const (
	// StateClosed passes every call through.
	StateClosed State = iota
	// StateOpen rejects calls without running them.
	StateOpen
	// StateHalfOpen lets one probe call through at a time.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a [CircuitBreaker].
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit (default 5).
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a probe is
	// allowed (default 10s).
	Cooldown time.Duration
	// SuccessThreshold is the number of consecutive successful probes
	// that closes the circuit again (default 1).
	SuccessThreshold int
	// OnStateChange runs under the breaker's lock on every transition.
	OnStateChange func(from, to State)
}

// DefaultBreakerConfig returns the settings used for the board store.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         10 * time.Second,
		SuccessThreshold: 1,
	}
}

// CircuitBreaker stops calling a failing store after a run of
// consecutive failures, so sessions get an immediate error instead of
// each waiting out a network timeout.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	probing       bool
	threshold     int
	cooldown      time.Duration
	closeAfter    int
	openedAt      time.Time
	now           func() time.Time
	onStateChange func(from, to State)
}

// NewCircuitBreaker creates a closed circuit breaker.  A nil cfg uses
// [DefaultBreakerConfig].
func NewCircuitBreaker(cfg *BreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	cb := &CircuitBreaker{
		state:         StateClosed,
		threshold:     cfg.FailureThreshold,
		cooldown:      cfg.Cooldown,
		closeAfter:    cfg.SuccessThreshold,
		now:           time.Now,
		onStateChange: cfg.OnStateChange,
	}
	if cb.threshold <= 0 {
		cb.threshold = 5
	}
	if cb.cooldown <= 0 {
		cb.cooldown = 10 * time.Second
	}
	if cb.closeAfter <= 0 {
		cb.closeAfter = 1
	}
	return cb
}

// Execute runs fn unless the circuit is open.  A rejected call returns
// an error wrapping [dlerrors.ErrCircuitOpen] and fn is not called.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// CurrentState returns the current state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.successes = 0
	cb.probing = false
	cb.transition(StateClosed)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		elapsed := cb.now().Sub(cb.openedAt)
		if elapsed < cb.cooldown {
			return fmt.Errorf("%w: %d consecutive failures, retry in %v",
				dlerrors.ErrCircuitOpen, cb.failures, (cb.cooldown - elapsed).Truncate(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			return fmt.Errorf("%w: probe in flight", dlerrors.ErrCircuitOpen)
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.state == StateHalfOpen
	cb.probing = false

	if err != nil {
		cb.failures++
		cb.successes = 0
		if wasProbe || cb.failures >= cb.threshold {
			cb.openedAt = cb.now()
			cb.transition(StateOpen)
		}
		return
	}

	if !wasProbe {
		cb.failures = 0
		return
	}
	cb.successes++
	if cb.successes >= cb.closeAfter {
		cb.failures = 0
		cb.successes = 0
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
