// Package breaker implements a circuit breaker used to stop hammering
// hosts whose media endpoints keep failing. Probes and segment fetches
// against an open circuit fail immediately instead of burning a network
// round trip per attempt.
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the operating state of a circuit.
type State int

const (
	// StateClosed lets requests through normally.
	StateClosed State = iota
	// StateOpen rejects all requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits a limited number of trial requests.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrOpen is returned while the circuit rejects requests.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTrialLimitReached is returned when the half-open trial budget
	// is exhausted.
	ErrTrialLimitReached = errors.New("circuit breaker trial limit reached")
)

// Config tunes one circuit.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Defaults to 5.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before admitting
	// trial requests. Defaults to 30 seconds.
	Cooldown time.Duration
	// TrialRequests is the number of requests admitted half-open.
	// Defaults to 1.
	TrialRequests int
	// Host labels log lines for this circuit.
	Host   string
	Logger *slog.Logger
}

// Breaker is a circuit breaker for one remote host.
type Breaker struct {
	cfg Config
	mu  sync.Mutex

	state          State
	failures       int
	trialsStarted  int
	trialSuccesses int
	openedAt       time.Time
}

// New creates a closed Breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.TrialRequests <= 0 {
		cfg.TrialRequests = 1
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Execute runs fn if the circuit admits it. The error of fn is passed
// through; ErrOpen and ErrTrialLimitReached mean fn never ran.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Cooldown {
		b.transition(StateHalfOpen)
	}

	switch b.state {
	case StateOpen:
		b.mu.Unlock()
		return ErrOpen

	case StateHalfOpen:
		if b.trialsStarted >= b.cfg.TrialRequests {
			b.mu.Unlock()
			return ErrTrialLimitReached
		}
		b.trialsStarted++
		b.mu.Unlock()

		err := fn()

		b.mu.Lock()
		defer b.mu.Unlock()
		if err != nil {
			b.transition(StateOpen)
			return err
		}
		b.trialSuccesses++
		if b.trialSuccesses >= b.cfg.TrialRequests {
			b.transition(StateClosed)
		}
		return nil

	case StateClosed:
		b.mu.Unlock()

		err := fn()

		b.mu.Lock()
		defer b.mu.Unlock()
		if err != nil {
			b.failures++
			if b.failures >= b.cfg.FailureThreshold {
				b.transition(StateOpen)
			}
			return err
		}
		b.failures = 0
		return nil

	default:
		b.mu.Unlock()
		return fmt.Errorf("unknown circuit breaker state: %d", b.state)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the circuit closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}

// transition changes state; the caller holds the lock.
func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}

	prev := b.state
	b.state = next

	if b.cfg.Logger != nil {
		b.cfg.Logger.Info("circuit breaker state changed",
			"host", b.cfg.Host,
			"from", prev.String(),
			"to", next.String(),
		)
	}

	switch next {
	case StateClosed:
		b.failures = 0
		b.trialsStarted = 0
		b.trialSuccesses = 0
		b.openedAt = time.Time{}
	case StateOpen:
		b.openedAt = time.Now()
		b.trialsStarted = 0
		b.trialSuccesses = 0
	case StateHalfOpen:
		b.trialsStarted = 0
		b.trialSuccesses = 0
	}
}
