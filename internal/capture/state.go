package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/navshot/internal/diag"
	"github.com/polzovatel/navshot/internal/events"
	"github.com/polzovatel/navshot/internal/executor"
	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/snapshot"
)

// State is a step of one capture.
type State int

const (
	StateLoad State = iota
	StateWaitRender
	StateRunActions
	StateMeasure
	StateRasterize
	StateResult
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoad:
		return "load"
	case StateWaitRender:
		return "wait-render"
	case StateRunActions:
		return "run-actions"
	case StateMeasure:
		return "measure"
	case StateRasterize:
		return "rasterize"
	case StateResult:
		return "result"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transitions lists the legal successors of each state. Result and Failed
// are terminal.
var Transitions = map[State][]State{
	StateLoad:       {StateWaitRender, StateFailed},
	StateWaitRender: {StateRunActions, StateMeasure, StateFailed},
	StateRunActions: {StateMeasure, StateFailed},
	StateMeasure:    {StateRasterize, StateFailed},
	StateRasterize:  {StateResult, StateFailed},
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to State) bool {
	for _, s := range Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a capture.
func (s State) Terminal() bool { return s == StateResult || s == StateFailed }

type captureRun struct {
	e        *Engine
	req      Request
	preset   Preset
	fullPage bool
	start    time.Time
	logger   zerolog.Logger

	state   State
	height  int
	report  *executor.Report
	console []diag.Line
	result  *Result
	err     error
}

func (c *captureRun) exec(ctx context.Context) (*Result, error) {
	c.state = StateLoad
	for !c.state.Terminal() {
		var next State
		switch c.state {
		case StateLoad:
			next = c.load(ctx)
		case StateWaitRender:
			next = c.waitRender(ctx)
		case StateRunActions:
			next = c.runActions(ctx)
		case StateMeasure:
			next = c.measure(ctx)
		case StateRasterize:
			next = c.rasterize(ctx)
		default:
			return nil, fmt.Errorf("capture: no handler for %s", c.state)
		}
		if !CanTransition(c.state, next) {
			return nil, fmt.Errorf("capture: illegal transition %s -> %s", c.state, next)
		}
		c.logger.Debug().Stringer("from", c.state).Stringer("to", next).Msg("capture transition")
		c.state = next
	}
	if c.state == StateFailed {
		return nil, c.err
	}
	return c.result, nil
}

func (c *captureRun) failWith(err error) State {
	c.err = err
	return StateFailed
}

func (c *captureRun) load(ctx context.Context) State {
	c.progress("loading page")
	loadCtx, cancel := context.WithTimeout(ctx, c.e.opts.LoadTimeout)
	defer cancel()
	err := c.e.surface.Load(loadCtx, c.req.URL, c.e.opts.LoadTimeout)
	if err == nil {
		return StateWaitRender
	}
	if ctx.Err() != nil {
		return c.failWith(ctx.Err())
	}
	if errors.Is(err, ErrLoadTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return c.failWith(c.e.fail(c.req, KindTimeout, ReasonLoadTimeout, err))
	}
	return c.failWith(c.e.fail(c.req, KindUnexpected, "load failed", err))
}

// waitRender races the countdown against error detection. Every tick
// checks banners and console lines first; the countdown only completes
// once images are complete, with one grace extension when they are not.
func (c *captureRun) waitRender(ctx context.Context) State {
	opts := c.e.opts
	remaining := opts.WaitSeconds
	graced := false
	policy := poll.Policy{Attempts: opts.WaitSeconds + opts.GraceTicks + 2, Interval: opts.Tick}

	err := poll.Until(ctx, policy, func(ctx context.Context, attempt int) (bool, error) {
		if err := c.detectFailure(ctx); err != nil {
			return false, err
		}
		complete, err := c.e.surface.ImagesComplete(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Int("tick", attempt).Msg("image state unavailable")
			complete = false
		}
		if remaining > 0 {
			c.progress(fmt.Sprintf("waiting for render, %d left", remaining))
			remaining--
			return false, nil
		}
		if complete {
			return true, nil
		}
		if !graced && opts.GraceTicks > 0 {
			graced = true
			remaining = opts.GraceTicks
			c.logger.Debug().Int("ticks", opts.GraceTicks).Msg("images incomplete, extending render wait")
			return false, nil
		}
		c.logger.Warn().Msg("images still loading after grace period, capturing anyway")
		return true, nil
	})
	if err != nil && !errors.Is(err, poll.ErrExhausted) {
		return c.failWith(err)
	}
	if c.req.Sequence != nil && len(c.req.Sequence.Steps) > 0 {
		return StateRunActions
	}
	return StateMeasure
}

// detectFailure returns a render error when a known banner or console
// signature is present.
func (c *captureRun) detectFailure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lines := c.e.surface.Diagnostics().Drain()
	c.console = append(c.console, lines...)
	if line, sig, ok := c.e.console.Scan(lines); ok {
		c.logger.Warn().Str("signature", sig).Str("line", line.Text).Msg("console error detected")
		return c.e.fail(c.req, KindRender, fmt.Sprintf("%s: %s", ReasonConsole, sig), nil)
	}

	doc, err := c.e.surface.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug().Err(err).Msg("banner scan skipped")
		return nil
	}
	for _, xp := range c.e.opts.BannerXPaths {
		nodes, err := snapshot.Query(doc, xp)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			text := snapshot.Text(n)
			if sig, ok := c.e.banners.Match(text); ok {
				c.logger.Warn().Str("signature", sig).Str("banner", text).Msg("error banner detected")
				return c.e.fail(c.req, KindRender, fmt.Sprintf("%s: %s", ReasonBanner, sig), nil)
			}
		}
	}
	return nil
}

func (c *captureRun) runActions(ctx context.Context) State {
	c.progress(fmt.Sprintf("replaying %d steps", len(c.req.Sequence.Steps)))
	report, err := c.e.exec.Execute(ctx, c.e.surface, *c.req.Sequence)
	c.report = &report
	if err != nil {
		if ctx.Err() != nil {
			return c.failWith(ctx.Err())
		}
		return c.failWith(c.e.fail(c.req, KindUnexpected, ReasonActions, err))
	}
	if err := c.detectFailure(ctx); err != nil {
		return c.failWith(err)
	}
	return StateMeasure
}

func (c *captureRun) measure(ctx context.Context) State {
	if !c.fullPage {
		c.height = c.preset.Height
		return StateRasterize
	}
	m, err := c.e.surface.Metrics(ctx)
	if err != nil {
		return c.failWith(c.e.unexpected(c.req, "measure", err))
	}
	c.height = FullPageHeight(m, c.preset.Height)
	c.logger.Debug().Int("height", c.height).Msg("measured full page")
	return StateRasterize
}

func (c *captureRun) rasterize(ctx context.Context) State {
	c.progress("taking screenshot")
	raw, err := c.screenshot(ctx)
	if err != nil {
		return c.failWith(c.e.unexpected(c.req, "screenshot", err))
	}
	img, err := decodePNG(raw)
	if err != nil {
		return c.failWith(c.e.unexpected(c.req, "screenshot", err))
	}
	url := c.e.surface.URL()
	if url == "" || url == "about:blank" {
		url = c.req.URL
	}
	full, err := encodePNG(Overlay(img, url, c.e.opts.OverlayHeight))
	if err != nil {
		return c.failWith(c.e.unexpected(c.req, "encode", err))
	}
	thumb, err := encodePNG(Thumbnail(img, c.e.opts.ThumbnailWidth))
	if err != nil {
		return c.failWith(c.e.unexpected(c.req, "thumbnail", err))
	}
	b := img.Bounds()
	c.result = &Result{
		RunID:     c.req.RunID,
		Sequence:  c.req.sequenceName(),
		SourceURL: url,
		Preset:    c.preset.Name,
		Width:     b.Dx(),
		Height:    b.Dy(),
		FullPage:  c.fullPage,
		Elapsed:   c.e.now().Sub(c.start),
		Image:     full,
		Thumbnail: thumb,
		Report:    c.report,
		Console:   c.console,
	}
	return StateResult
}

// screenshot pins fixed elements for full-page captures and restores them
// whatever the outcome.
func (c *captureRun) screenshot(ctx context.Context) (_ []byte, err error) {
	if c.fullPage {
		restore, pinErr := c.e.surface.PinFixed(ctx)
		if pinErr != nil {
			return nil, fmt.Errorf("pin fixed elements: %w", pinErr)
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.e.opts.CleanupTimeout)
			defer cancel()
			if rerr := restore(rctx); rerr != nil {
				c.logger.Warn().Err(rerr).Msg("restoring fixed elements failed")
				if err == nil {
					err = fmt.Errorf("restore fixed elements: %w", rerr)
				}
			}
		}()
	}
	return c.e.surface.Screenshot(ctx, c.preset.Width, c.height)
}

func (c *captureRun) cleanup(ctx context.Context) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.e.opts.CleanupTimeout)
	defer cancel()
	if err := c.e.surface.Reset(rctx); err != nil {
		c.logger.Warn().Err(err).Msg("surface reset failed")
	}
}

func (c *captureRun) progress(msg string) {
	c.e.bus.Emit(events.Event{Kind: events.CaptureProgress, URL: c.req.URL, Sequence: c.req.sequenceName(), Message: msg})
}
