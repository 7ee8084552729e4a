package events_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/navshot/internal/events"
)

func TestBusFiltersByKind(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var all, failures events.Recorder
	bus.Subscribe(all.Handle)
	bus.Subscribe(failures.Handle, events.CaptureFailed, events.SequenceError)

	bus.Emit(events.Event{Kind: events.CaptureStarted, URL: "https://x"})
	bus.Emit(events.Event{Kind: events.CaptureFailed, Message: "banner"})

	assert.Equal(t, []events.Kind{events.CaptureStarted, events.CaptureFailed}, all.Kinds())
	require.Len(t, failures.Events(), 1)
	ev := failures.Events()[0]
	assert.Equal(t, "banner", ev.Message)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestBusUnsubscribe(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var rec events.Recorder
	cancel := bus.Subscribe(rec.Handle)
	bus.Emit(events.Event{Kind: events.ScreenshotTaken})
	cancel()
	bus.Emit(events.Event{Kind: events.ScreenshotTaken})
	assert.Len(t, rec.Events(), 1)
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var rec events.Recorder
	bus.Subscribe(func(events.Event) { panic("listener bug") })
	bus.Subscribe(rec.Handle)

	assert.NotPanics(t, func() { bus.Emit(events.Event{Kind: events.CaptureProgress}) })
	assert.Len(t, rec.Events(), 1)
}

func TestNilBusDropsEvents(t *testing.T) {
	var bus *events.Bus
	assert.NotPanics(t, func() { bus.Emit(events.Event{Kind: events.SequenceTaken}) })
}
