package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/intake/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: true},
		{name: "upper case marker", err: errors.New("Connection refused"), want: true},
		{name: "timeout", err: errors.New("statement timeout exceeded"), want: true},
		{name: "bad conn", err: fmt.Errorf("exec: %w", errors.New("driver: bad connection")), want: true},
		{name: "constraint violation", err: errors.New("UNIQUE constraint failed: intake_records.cid"), want: false},
		{name: "syntax error", err: errors.New("near \"SELEC\": syntax error"), want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{
			name: "store error with marker in CID",
			err:  &types.StoreError{Op: "insert", CID: "timeout-7", Err: errors.New("NOT NULL constraint failed: intake_records.data")},
			want: false,
		},
		{
			name: "wrapped store error with marker in CID",
			err:  fmt.Errorf("save: %w", &types.StoreError{Op: "update", CID: "connection-A1", Err: errors.New("disk full")}),
			want: false,
		},
		{
			name: "store error with transient cause",
			err:  &types.StoreError{Op: "exists", CID: "A001", Err: errors.New("dial tcp: connection refused")},
			want: true,
		},
		{name: "store error without cause", err: &types.StoreError{Op: "open"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func noSleep(calls *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*calls = append(*calls, d)
		return nil
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var sleeps []time.Duration
	p := Default()
	p.sleep = noSleep(&sleeps)

	calls := 0
	var retried []int
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection lost")
		}
		return nil
	}, func(attempt int, err error) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, []time.Duration{DefaultDelay, DefaultDelay}, sleeps)
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	var sleeps []time.Duration
	p := Default()
	p.sleep = noSleep(&sleeps)

	calls := 0
	want := errors.New("timeout waiting for server")
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return want
	}, nil)

	assert.ErrorIs(t, err, want)
	assert.Equal(t, DefaultMaxAttempts, calls)
	assert.Len(t, sleeps, DefaultMaxAttempts-1)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	var sleeps []time.Duration
	p := Default()
	p.sleep = noSleep(&sleeps)

	calls := 0
	want := errors.New("NOT NULL constraint failed")
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return want
	}, func(int, error) { t.Fatal("onRetry must not run for permanent errors") })

	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps)
}

func TestDoHonorsCancelledContextDuringDelay(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: time.Hour, Classify: IsTransient}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection refused")
	}, nil)

	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 1, calls)
}

func TestDoRealDelay(t *testing.T) {
	p := Policy{MaxAttempts: 2, Delay: 5 * time.Millisecond, Classify: func(error) bool { return true }}
	start := time.Now()
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return timeoutErr{}
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
