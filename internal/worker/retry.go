package worker

import (
	"math"
	"time"

	"contentops/internal/config"
)

// RetryPolicy defines exponential backoff parameters. There is no retry cap:
// the poller keeps going at MaxDelay until the server answers.
type RetryPolicy struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// RetryPolicyFromConfig starts the backoff at the poll interval.
func RetryPolicyFromConfig(cfg config.PollerConfig) RetryPolicy {
	return RetryPolicy{
		InitialDelay:  cfg.Interval,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: cfg.BackoffFactor,
	}
}

// NextDelay returns delay after the given number of consecutive failures
// (1-based) with clamping.
func (r RetryPolicy) NextDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(failures))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		return r.MaxDelay
	}
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	d := time.Duration(delay)
	if d <= 0 {
		d = r.InitialDelay
	}
	return d
}
