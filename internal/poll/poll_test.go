package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestUntilStopsOnDone(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Policy{Attempts: 5, Interval: time.Millisecond}, func(_ context.Context, attempt int) (bool, error) {
		calls++
		return attempt == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilExhausted(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Policy{Attempts: 4, Interval: time.Millisecond}, func(context.Context, int) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4, calls)
}

func TestUntilPropagatesPredicateError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Until(context.Background(), Policy{Attempts: 10, Interval: time.Millisecond}, func(context.Context, int) (bool, error) {
		calls++
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestUntilHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Until(ctx, Policy{Attempts: 100, Interval: 5 * time.Millisecond}, func(context.Context, int) (bool, error) {
		cancel()
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUntilZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Policy{}, func(context.Context, int) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestPolicyTimeout(t *testing.T) {
	assert.Equal(t, 900*time.Millisecond, Policy{Attempts: 10, Interval: 100 * time.Millisecond}.Timeout())
	assert.Zero(t, Policy{Attempts: 1, Interval: time.Second}.Timeout())
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
