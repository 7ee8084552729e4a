package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/navshot/internal/sequence"
)

type recorder struct {
	events  []string
	missing map[string]bool
	failOn  string
}

func (r *recorder) Click(_ context.Context, selector string) (bool, error) {
	r.events = append(r.events, "click "+selector)
	if selector == r.failOn {
		return false, errors.New("target closed")
	}
	return !r.missing[selector], nil
}

func newTestExecutor(r *recorder) *Executor {
	e := New(zerolog.Nop())
	e.sleep = func(_ context.Context, d time.Duration) error {
		r.events = append(r.events, "wait "+d.String())
		return nil
	}
	return e
}

func TestExecuteInOrder(t *testing.T) {
	r := &recorder{missing: map[string]bool{"//gone": true}}
	seq := sequence.New("Reports - Daily",
		sequence.Click("//reports", sequence.KindText),
		sequence.Wait(1000),
		sequence.Click("//gone", sequence.KindPositional),
		sequence.Wait(2000),
	)

	rep, err := newTestExecutor(r).Execute(context.Background(), r, seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"click //reports", "wait 1s", "click //gone", "wait 2s"}, r.events)
	assert.Equal(t, 1, rep.Missing)
	require.Len(t, rep.Steps, 4)
	assert.False(t, rep.Steps[2].Resolved)
	assert.True(t, rep.Steps[0].Resolved)
}

func TestExecuteBackendFailure(t *testing.T) {
	r := &recorder{failOn: "//broken"}
	seq := sequence.New("x", sequence.Click("//broken", sequence.KindID), sequence.Wait(10))

	_, err := newTestExecutor(r).Execute(context.Background(), r, seq)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 0, stepErr.Index)
	assert.Equal(t, []string{"click //broken"}, r.events)
}

func TestExecuteUnknownStep(t *testing.T) {
	r := &recorder{}
	_, err := newTestExecutor(r).Execute(context.Background(), r, sequence.Sequence{Name: "x", Steps: sequence.Steps{{Type: "hover"}}})
	assert.Error(t, err)
}

func TestExecuteCancelled(t *testing.T) {
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(zerolog.Nop()).Execute(ctx, r, sequence.New("x", sequence.Wait(10)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.events)
}

func TestExecuteRealWait(t *testing.T) {
	r := &recorder{}
	start := time.Now()
	_, err := New(zerolog.Nop()).Execute(context.Background(), r, sequence.New("x", sequence.Wait(20)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
