package pattern

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")

	cases := []struct {
		name         string
		failures     []error
		opts         []RetryOption
		wantErr      error
		wantAttempts int
	}{
		{name: "first_try", wantAttempts: 1},
		{name: "succeeds_after_retries", failures: []error{errTransient, errTransient}, wantAttempts: 3},
		{name: "exhausts_attempts", failures: []error{errTransient, errTransient, errTransient}, opts: []RetryOption{WithMaxAttempts(2)}, wantErr: errTransient, wantAttempts: 2},
		{
			name:         "should_retry_stops",
			failures:     []error{errFatal, errTransient},
			opts:         []RetryOption{WithShouldRetry(func(err error) bool { return !errors.Is(err, errFatal) })},
			wantErr:      errFatal,
			wantAttempts: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attempts := 0
			opts := append([]RetryOption{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}, tc.opts...)
			err := Retry(context.Background(), func(attempt int) error {
				attempts = attempt
				if attempt-1 < len(tc.failures) {
					return tc.failures[attempt-1]
				}
				return nil
			}, opts...)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.wantAttempts, attempts)
		})
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := Retry(ctx, func(int) error { return errors.New("down") },
		WithInfiniteAttempts(), WithInitialDelay(5*time.Millisecond), WithMaxDelay(5*time.Millisecond))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetry_OnRetryHook(t *testing.T) {
	var seen []int
	_ = Retry(context.Background(), func(int) error { return errors.New("x") },
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithOnRetry(func(attempt int, _ error, _ time.Duration) { seen = append(seen, attempt) }),
	)
	require.Equal(t, []int{1, 2}, seen)
}

func TestBackoff_CappedAndJittered(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	require.Equal(t, 100*time.Millisecond, backoff(cfg, 1, rng))
	require.Equal(t, 200*time.Millisecond, backoff(cfg, 2, rng))
	require.Equal(t, 300*time.Millisecond, backoff(cfg, 5, rng))

	cfg.Jitter = 0.5
	for i := 0; i < 20; i++ {
		d := backoff(cfg, 1, rng)
		require.GreaterOrEqual(t, d, 50*time.Millisecond)
		require.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
