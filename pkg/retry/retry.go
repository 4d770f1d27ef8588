// Package retry provides bounded exponential backoff for upstream calls.
package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Tekstrive/fashionDeck/errors"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return "non-retryable: " + e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Policy configures retry behavior for one upstream class.
//
// An operation run under a policy is invoked at most MaxRetries+1 times.
// The delay before retry n (0-indexed over retried attempts only) is
// min(InitialDelay × Multiplier^n, MaxDelay), perturbed by uniform jitter
// in ±25% of that value when Jitter is enabled, floored at zero.
type Policy struct {
	MaxRetries   int           // Additional attempts beyond the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound on any single delay
	Multiplier   float64       // Backoff multiplier (typically 2.0)
	Jitter       bool          // Add randomness to prevent thundering herd
}

// CompletionAPI returns the policy for completion-API calls.
// Low retry count with jitter: these calls are expensive and slow.
func CompletionAPI() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Datastore returns the policy for relational and KV store calls.
// Higher retry count without jitter: these are cheap and usually transient.
func Datastore() Policy {
	return Policy{
		MaxRetries:   5,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

// ExternalAPI returns the lighter policy for generic external calls
// such as image fetches and encoder requests.
func ExternalAPI() Policy {
	return Policy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Delay returns the backoff delay for retry attempt n (0-indexed),
// before jitter.
func (p Policy) Delay(n int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1.0
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(n))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > float64(math.MaxInt64) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// jittered perturbs a delay by a uniform offset in ±25%, floored at zero.
func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	randMu.Lock()
	offset := (randSource.Float64()*2 - 1) * 0.25 * float64(d)
	randMu.Unlock()

	final := time.Duration(float64(d) + offset)
	if final < 0 {
		return 0
	}
	return final
}

// Do executes fn under the policy. The operation is invoked exactly
// MaxRetries+1 times unless it succeeds earlier, the error is marked
// non-retryable, the error classifies as invalid or fatal, or the context
// is cancelled. After the final attempt the last error is returned
// unmodified so callers can distinguish a genuine failure from a
// transient one already exhausted.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) || errors.IsInvalid(err) || errors.IsFatal(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == policy.MaxRetries {
			break
		}

		if ctx.Err() != nil {
			return lastErr
		}

		sleep := policy.Delay(attempt)
		if policy.Jitter {
			sleep = jittered(sleep)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

// DoWithResult executes fn under the policy and returns both result and error
func DoWithResult[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
