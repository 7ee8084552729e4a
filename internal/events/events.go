// Package events is the advisory notification channel of the capture and
// generation loops. Nothing in the core depends on a listener being present.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind names an event.
type Kind string

const (
	CaptureStarted  Kind = "capture-started"
	CaptureProgress Kind = "capture-progress"
	ScreenshotTaken Kind = "screenshot-taken"
	CaptureFailed   Kind = "capture-failed"
	SequenceTaken   Kind = "sequence-taken"
	SequenceError   Kind = "sequence-error"
)

// Event is the envelope delivered to handlers.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	URL       string    `json:"url,omitempty"`
	Sequence  string    `json:"sequence,omitempty"`
	Message   string    `json:"message,omitempty"`
	Err       error     `json:"-"`
}

// Handler consumes events. Handlers run synchronously on the emitting
// goroutine and must not block.
type Handler func(Event)

type subscription struct {
	id    uint64
	kinds map[Kind]struct{}
	fn    Handler
}

// Bus fans events out to subscribers. A nil *Bus drops everything.
type Bus struct {
	logger zerolog.Logger
	mu     sync.RWMutex
	subs   []subscription
	next   uint64
	now    func() time.Time
}

// NewBus returns an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger.With().Str("comp", "events").Logger(), now: time.Now}
}

// Subscribe registers fn for the given kinds, or for every kind when none
// are given. The returned func removes the subscription.
func (b *Bus) Subscribe(fn Handler, kinds ...Kind) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	s := subscription{id: b.next, fn: fn}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	b.subs = append(b.subs, s)
	id := s.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit stamps ev and delivers it. A panicking handler is logged and does
// not affect the emitter or other handlers.
func (b *Bus) Emit(ev Event) {
	if b == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now().UTC()
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.kinds != nil {
			if _, ok := s.kinds[ev.Kind]; !ok {
				continue
			}
		}
		b.deliver(s.fn, ev)
	}
}

func (b *Bus) deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("kind", string(ev.Kind)).Msg("event handler panicked")
		}
	}()
	fn(ev)
}

// Recorder is a Handler collecting every event in delivery order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle records ev.
func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds recorded, in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}
