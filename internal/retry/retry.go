// Package retry runs an operation a bounded number of times, retrying only
// failures classified as transient and waiting a fixed delay in between.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mesh-intelligence/intake/pkg/types"
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = time.Second
)

// transientMarkers are matched case-insensitively against the error text.
var transientMarkers = []string{"connection", "timeout"}

// Policy bounds a retry loop. The zero value is not useful; start from
// Default.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the fixed pause before each retry.
	Delay time.Duration

	// Classify reports whether err may succeed on retry.
	Classify func(error) bool

	// sleep is replaced in tests.
	sleep func(context.Context, time.Duration) error
}

// Default returns the policy used by the upsert service: three attempts,
// one second apart, retrying connectivity and timeout failures.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		Classify:    IsTransient,
	}
}

// IsTransient reports whether err looks like a connectivity or timeout
// failure. For a *types.StoreError only the driver cause is inspected; the
// CID in its message is caller data.
func IsTransient(err error) bool {
	var se *types.StoreError
	if errors.As(err, &se) {
		err = se.Err
	}
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if pgconn.Timeout(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Do calls fn until it succeeds, fails with a non-transient error, or the
// attempts run out. onRetry, when non-nil, runs after a transient failure
// and before the delay; attempt is the 1-based number of the failed try.
// The last error is returned unchanged.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = IsTransient
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || !classify(err) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return err
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
