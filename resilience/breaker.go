package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
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

// ErrCircuitOpen is returned without calling the protected function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	Name string
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout       time.Duration
	OnStateChange func(name string, from, to State)
	// IsFailure decides which errors count against the circuit. Nil counts all.
	IsFailure func(error) bool

	now func() time.Time
}

// DefaultCircuitBreakerConfig opens after 5 failures for 30s.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{Name: name, MaxFailures: 5, Timeout: 30 * time.Second}
}

// CircuitBreaker fails fast while a dependency is known to be down.
// Closed passes calls through; Open rejects them; HalfOpen admits a single
// probe whose outcome closes or reopens the circuit.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && (cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err))
	switch {
	case cb.state == StateHalfOpen && failed:
		cb.transition(StateOpen)
	case cb.state == StateHalfOpen:
		cb.transition(StateClosed)
	case failed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.transition(StateOpen)
		}
	default:
		cb.failures = 0
	}
}

// refresh moves an expired open circuit to half-open. Caller holds mu.
func (cb *CircuitBreaker) refresh() {
	if cb.state == StateOpen && cb.cfg.now().Sub(cb.openedAt) >= cb.cfg.Timeout {
		cb.transition(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.probing = false
	if to == StateOpen {
		cb.openedAt = cb.cfg.now()
	}
	if cb.cfg.OnStateChange != nil && from != to {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
