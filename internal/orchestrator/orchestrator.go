// Package orchestrator runs the generation and capture loops: discover the
// menu, build sequences for the selected items one at a time from a fresh
// baseline, then replay and capture each sequence in turn.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/navshot/internal/builder"
	"github.com/polzovatel/navshot/internal/capture"
	"github.com/polzovatel/navshot/internal/events"
	"github.com/polzovatel/navshot/internal/locator"
	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/sequence"
)

// Capturer is the capture engine as seen by the loop.
type Capturer interface {
	Capture(ctx context.Context, req capture.Request) (*capture.Result, error)
}

type Config struct {
	Locator       locator.Profile
	MenuPolicy    poll.Policy
	SettleTimeout time.Duration
}

// DefaultConfig waits up to five seconds for the sidebar to render.
func DefaultConfig() Config {
	return Config{
		Locator:       locator.DefaultProfile(),
		MenuPolicy:    poll.Policy{Attempts: 10, Interval: 500 * time.Millisecond},
		SettleTimeout: 10 * time.Second,
	}
}

// GenerateOptions are the per-run generation settings.
type GenerateOptions struct {
	WaitMs         int
	IncludeToolbar bool
}

// CaptureOptions are the per-run capture settings. OnResult, when set, is
// called with every successful capture as soon as it is taken; an error
// from it aborts the loop.
type CaptureOptions struct {
	Preset   string
	FullPage bool
	RunID    string
	OnResult func(index int, res *capture.Result) error
}

type Orchestrator struct {
	cfg     Config
	page    builder.Page
	builder *builder.Builder
	engine  Capturer
	bus     *events.Bus
	logger  zerolog.Logger
}

// New wires the loop. engine may be nil when only generation is used.
func New(cfg Config, page builder.Page, bld *builder.Builder, engine Capturer, bus *events.Bus, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		page:    page,
		builder: bld,
		engine:  engine,
		bus:     bus,
		logger:  logger.With().Str("comp", "orchestrator").Logger(),
	}
}

// Discover loads baseURL and lists its navigable top-level menu items, the
// choices offered to the human selecting targets.
func (o *Orchestrator) Discover(ctx context.Context, baseURL string) ([]locator.MenuItem, error) {
	if err := o.reload(ctx, baseURL); err != nil {
		return nil, err
	}
	var items []locator.MenuItem
	err := poll.Until(ctx, o.cfg.MenuPolicy, func(ctx context.Context, attempt int) (bool, error) {
		doc, err := o.page.Snapshot(ctx)
		if err != nil {
			o.logger.Debug().Err(err).Int("attempt", attempt).Msg("menu snapshot failed")
			return false, nil
		}
		items = locator.LocateMenuItems(doc, o.cfg.Locator)
		return len(items) > 0, nil
	})
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	o.logger.Info().Str("url", baseURL).Int("items", len(items)).Msg("menu discovered")
	if items == nil {
		items = []locator.MenuItem{}
	}
	return items, nil
}

// Generate builds the sequences of every identifier in order. The baseline
// is reloaded before each item so exploration of one item never leaks into
// the next; an item yielding nothing gets the bare click sequence.
func (o *Orchestrator) Generate(ctx context.Context, baseURL string, identifiers []string, opts GenerateOptions) ([]sequence.Sequence, error) {
	out := make([]sequence.Sequence, 0, len(identifiers))
	for i, id := range identifiers {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		logger := o.logger.With().Str("item", id).Int("index", i).Logger()
		if err := o.reload(ctx, baseURL); err != nil {
			return out, err
		}
		seqs, err := o.builder.BuildForMenuItem(logger.WithContext(ctx), id, opts.WaitMs, opts.IncludeToolbar)
		if err != nil {
			return out, fmt.Errorf("build %q: %w", id, err)
		}
		if len(seqs) == 0 {
			logger.Warn().Msg("nothing reachable, using bare click sequence")
			seqs = []sequence.Sequence{o.builder.Fallback(id, opts.WaitMs)}
		}
		logger.Info().Int("sequences", len(seqs)).Msg("item explored")
		out = append(out, seqs...)
	}
	return out, nil
}

// CaptureAll captures url once per sequence, strictly one after the other.
// Render failures are reported and skipped; any other failure aborts the
// run and returns what was captured so far. With no sequences the page is
// captured once as loaded.
func (o *Orchestrator) CaptureAll(ctx context.Context, url string, seqs []sequence.Sequence, opts CaptureOptions) ([]*capture.Result, error) {
	if o.engine == nil {
		return nil, fmt.Errorf("orchestrator: no capture engine configured")
	}
	reqs := make([]capture.Request, 0, len(seqs))
	for i := range seqs {
		reqs = append(reqs, capture.Request{URL: url, Preset: opts.Preset, FullPage: opts.FullPage, Sequence: &seqs[i], RunID: opts.RunID})
	}
	if len(reqs) == 0 {
		reqs = append(reqs, capture.Request{URL: url, Preset: opts.Preset, FullPage: opts.FullPage, RunID: opts.RunID})
	}

	results := make([]*capture.Result, 0, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		name := ""
		if req.Sequence != nil {
			name = req.Sequence.Name
		}
		res, err := o.engine.Capture(ctx, req)
		if err != nil {
			if capture.IsRender(err) {
				o.logger.Warn().Err(err).Str("sequence", name).Msg("render failed, skipping")
				o.bus.Emit(events.Event{Kind: events.SequenceError, URL: url, Sequence: name, Message: err.Error(), Err: err})
				continue
			}
			o.bus.Emit(events.Event{Kind: events.SequenceError, URL: url, Sequence: name, Message: err.Error(), Err: err})
			return results, err
		}
		o.bus.Emit(events.Event{Kind: events.SequenceTaken, URL: url, Sequence: name})
		if opts.OnResult != nil {
			if err := opts.OnResult(i, res); err != nil {
				return results, err
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func (o *Orchestrator) reload(ctx context.Context, url string) error {
	if err := o.page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	if err := o.page.Settle(ctx, o.cfg.SettleTimeout); err != nil && ctx.Err() == nil {
		o.logger.Debug().Err(err).Msg("page did not settle")
	}
	return ctx.Err()
}
