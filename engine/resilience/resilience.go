// Package resilience provides a rate limiter, a circuit breaker, and a retry
// helper. No other package in this module calls them: the scheduler does not
// retry, rate-limit, or break circuits around task execution.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// RateLimiter wraps a token-bucket limiter; Wait blocks until a token is
// available rather than failing outright.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter refilling at ratePerSecond tokens/sec with
// burst capacity burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a token is immediately available, consuming one if
// so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// BreakerState names a CircuitBreaker's current mode.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

// Breaker is the capability Retry consults before each attempt.
type Breaker interface {
	Allow() bool
	RecordSuccess()
	RecordFailure()
	State() BreakerState
}

// CircuitBreaker is Breaker's default implementation: Closed -> Open after
// failureThreshold consecutive failures -> HalfOpen after resetTimeout ->
// Closed on a HalfOpen success, back to Open on a HalfOpen failure.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	resetTimeout     time.Duration
	failures         int
	lastFailure      time.Time
	state            BreakerState
}

// NewCircuitBreaker builds a closed breaker that opens after
// failureThreshold consecutive failures, retrying half-open after
// resetTimeout.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{failureThreshold: failureThreshold, resetTimeout: resetTimeout}
}

// Allow reports whether a call is currently permitted, transitioning Open
// to HalfOpen once resetTimeout has elapsed since the last failure.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Closed:
		return true
	case Open:
		if time.Since(c.lastFailure) >= c.resetTimeout {
			c.state = HalfOpen
			return true
		}
		return false
	default: // HalfOpen
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (c *CircuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.state = Closed
}

// RecordFailure increments the failure count, opening the breaker once the
// threshold is reached (or immediately, from HalfOpen).
func (c *CircuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFailure = time.Now()
	if c.state == HalfOpen {
		c.state = Open
		return
	}
	c.failures++
	if c.failures >= c.failureThreshold {
		c.state = Open
	}
}

// State reports the breaker's current mode.
func (c *CircuitBreaker) State() BreakerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ErrBreakerOpen is returned by Retry when the breaker refuses a call.
var ErrBreakerOpen = errBreakerOpen{}

type errBreakerOpen struct{}

func (errBreakerOpen) Error() string { return "circuit breaker is open" }

// RetryPolicy bounds Retry's exponential backoff.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy mirrors a conservative default: 3 retries, 100ms
// initial backoff growing by the backoff library's default multiplier (1.5,
// with jitter) up to 10s.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 10 * time.Second}

// Retry runs fn with exponential backoff up to policy.MaxRetries, consulting
// breaker (if non-nil) before every attempt and feeding it the outcome.
func Retry(ctx context.Context, policy RetryPolicy, breaker Breaker, fn func(ctx context.Context) error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = policy.InitialBackoff
	expBackoff.MaxInterval = policy.MaxBackoff
	bo := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(policy.MaxRetries)), ctx)

	return backoff.Retry(func() error {
		if breaker != nil && !breaker.Allow() {
			return ErrBreakerOpen
		}
		err := fn(ctx)
		if breaker != nil {
			if err != nil {
				breaker.RecordFailure()
			} else {
				breaker.RecordSuccess()
			}
		}
		return err
	}, bo)
}
