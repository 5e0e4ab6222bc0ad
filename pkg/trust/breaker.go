package trust

import (
	"context"
	"sync"
	"time"

	"github.com/agentmesh/node/internal/apperrors"
)

// State is one of the breaker's three states (spec.md §4.8).
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerDefaults per spec.md §4.8: 5 consecutive failures trip the
// breaker; it stays Open for 30s before moving to HalfOpen. HalfOpen does
// not limit concurrency: every call made while HalfOpen runs as a trial.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

// ErrBreakerOpen is returned by Call when the breaker is Open and not
// yet due for a trial.
var ErrBreakerOpen = apperrors.New(apperrors.KindBlockchain, "circuit breaker: open")

// Breaker wraps a single func(ctx) (T, error) on-chain call in a
// Closed/Open/HalfOpen state machine — spec.md §9's design note:
// "model the breaker as a state machine around the chain call; do not
// sprinkle if failures > N checks at call sites."
type Breaker struct {
	failureThreshold int
	cooldown         time.Duration

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
}

// NewBreaker creates a Breaker with the given failure threshold and
// cooldown; pass 0 for either to use the spec defaults.
func NewBreaker(failureThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{failureThreshold: failureThreshold, cooldown: cooldown, state: Closed}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// currentStateLocked applies the Open -> HalfOpen cooldown transition
// lazily, on read, rather than via a background timer.
func (b *Breaker) currentStateLocked() State {
	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		b.state = HalfOpen
	}
	return b.state
}

// Call runs fn if the breaker allows it, updating state on the result.
// When Open (and the cooldown has not elapsed), Call returns
// ErrBreakerOpen without invoking fn.
func Call[T any](b *Breaker, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	b.mu.Lock()
	state := b.currentStateLocked()
	if state == Open {
		b.mu.Unlock()
		var zero T
		return zero, ErrBreakerOpen
	}
	b.mu.Unlock()

	result, err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.consecutiveFail++
		if state == HalfOpen || b.consecutiveFail >= b.failureThreshold {
			b.state = Open
			b.openedAt = time.Now()
		}
		return result, err
	}
	b.state = Closed
	b.consecutiveFail = 0
	return result, nil
}
