package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	var retries []int
	p := fast(2)
	p.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }

	err := Do(context.Background(), p, func(context.Context) error { return boom })

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, retries)
}

func TestDo_PermanentStops(t *testing.T) {
	rejected := errors.New("rejected")
	calls := 0
	err := Do(context.Background(), fast(5), func(context.Context) error {
		calls++
		return Permanent(rejected)
	})

	assert.Equal(t, rejected, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 10, Initial: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, func(context.Context) error {
			calls++
			return errors.New("down")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not observe cancellation")
	}
}

func TestValue(t *testing.T) {
	n, err := Value(context.Background(), fast(1), func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestDelay_Capped(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, time.Second, p.Delay(10))
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.False(t, IsPermanent(errors.New("x")))
}
