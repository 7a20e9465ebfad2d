// Package dispatch contains the pure retry rules for outbound delivery.
package dispatch

import "time"

// SendStatus is the outcome of a send request.
type SendStatus string

const (
	StatusSent       SendStatus = "sent"
	StatusRetrying   SendStatus = "retrying"
	StatusFailed     SendStatus = "failed"
	StatusInProgress SendStatus = "in_progress"
)

// RetryPolicy bounds automatic re-attempts of a failed send.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    2 * time.Minute,
	}
}

// Backoff returns the wait before attempt number attempts+1.
// It doubles from BaseDelay and is capped at MaxDelay.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RetryDecision is the outcome of PlanRetry.
type RetryDecision struct {
	Exhausted     bool
	Delay         time.Duration
	NextAttemptAt time.Time
}

// PlanRetry decides what happens after the attempts-th failed attempt.
// Non-retryable failures exhaust the budget immediately.
func PlanRetry(p RetryPolicy, attempts int, retryable bool, now time.Time) RetryDecision {
	if !retryable || attempts >= p.MaxAttempts {
		return RetryDecision{Exhausted: true}
	}
	delay := p.Backoff(attempts)
	return RetryDecision{
		Delay:         delay,
		NextAttemptAt: now.Add(delay),
	}
}

// IsDue reports whether a scheduled re-attempt may run at now.
// A zero nextAttemptAt means "immediately".
func IsDue(nextAttemptAt, now time.Time) bool {
	return nextAttemptAt.IsZero() || !now.Before(nextAttemptAt)
}
