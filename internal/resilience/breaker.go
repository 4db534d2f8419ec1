// Package resilience guards calls to remote dependencies with a circuit
// breaker and bounded retries.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State uint32

const (
	Closed   State = iota // calls flow
	Open                  // calls fail fast
	HalfOpen              // one probe at a time
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow while calls are being rejected.
var ErrOpen = errors.New("circuit breaker open")

// Counts is a snapshot of breaker activity since creation.
type Counts struct {
	Requests            uint64 `json:"requests"`
	Failures            uint64 `json:"failures"`
	Rejected            uint64 `json:"rejected"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// Breaker opens after Threshold consecutive failures. Once ResetTimeout has
// passed it admits a single probe at a time and closes after HalfOpenSuccesses
// successful probes.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	openedAt time.Time
	probing  bool
	probes   int
	counts   Counts
	onChange func(from, to State)
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// OnStateChange registers fn to run after every transition.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns a snapshot of the breaker counters.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Allow reports whether a call may proceed. A nil return must be followed by
// exactly one of Success, Failure or Cancel.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	var tr transition
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.counts.Rejected++
			b.mu.Unlock()
			return ErrOpen
		}
		tr = b.setLocked(HalfOpen)
		b.probing = true
	case HalfOpen:
		if b.probing {
			b.counts.Rejected++
			b.mu.Unlock()
			return ErrOpen
		}
		b.probing = true
	}
	b.counts.Requests++
	b.mu.Unlock()

	b.fire(tr)
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	var tr transition
	b.counts.ConsecutiveFailures = 0
	if b.state == HalfOpen {
		b.probing = false
		b.probes++
		if b.probes >= b.cfg.HalfOpenSuccesses {
			tr = b.setLocked(Closed)
		}
	}
	b.mu.Unlock()
	b.fire(tr)
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	var tr transition
	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	switch b.state {
	case Closed:
		if b.counts.ConsecutiveFailures >= b.cfg.Threshold {
			tr = b.setLocked(Open)
		}
	case HalfOpen:
		tr = b.setLocked(Open)
	}
	b.mu.Unlock()
	b.fire(tr)
}

// Cancel releases an admitted call that ended without a verdict, such as one
// abandoned by its caller.
func (b *Breaker) Cancel() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.counts.ConsecutiveFailures = 0
	tr := b.setLocked(Closed)
	b.mu.Unlock()
	b.fire(tr)
}

// Execute runs fn under the breaker. Context cancellation does not count as a
// failure of the remote side.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	switch {
	case err == nil:
		b.Success()
	case errors.Is(err, context.Canceled):
		b.Cancel()
	default:
		b.Failure()
	}
	return err
}

type transition struct {
	from, to State
	hook     func(from, to State)
	changed  bool
}

// setLocked moves to state to. The caller holds b.mu and passes the result to fire.
func (b *Breaker) setLocked(to State) transition {
	from := b.state
	if from == to {
		return transition{}
	}
	b.state = to
	b.probing = false
	b.probes = 0
	if to == Open {
		b.openedAt = b.now()
	}
	return transition{from: from, to: to, hook: b.onChange, changed: true}
}

func (b *Breaker) fire(tr transition) {
	if !tr.changed {
		return
	}
	log := slog.With("breaker", b.cfg.Name, "from", tr.from.String())
	if tr.to == Open {
		log.Warn("circuit breaker opened")
	} else {
		log.Info("circuit breaker " + tr.to.String())
	}
	if tr.hook != nil {
		tr.hook(tr.from, tr.to)
	}
}
