package builder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/navshot/internal/locator"
	"github.com/polzovatel/navshot/internal/sequence"
	"github.com/polzovatel/navshot/internal/snapshot"
	"github.com/polzovatel/navshot/internal/toolbar"
	"github.com/polzovatel/navshot/internal/urlctx"
)

// State is a step of one BuildForMenuItem invocation.
type State int

const (
	StateLocate State = iota
	StateExpand
	StateDirect
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLocate:
		return "locate"
	case StateExpand:
		return "expand"
	case StateDirect:
		return "direct"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transitions lists the legal successors of each state.
var Transitions = map[State][]State{
	StateLocate: {StateExpand, StateDirect, StateDone},
	StateExpand: {StateDone},
	StateDirect: {StateDone},
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

// run carries the state of one invocation.
type run struct {
	b              *Builder
	identifier     string
	waitMs         int
	includeToolbar bool
	logger         zerolog.Logger

	state  State
	item   locator.MenuItem
	main   sequence.Sequence
	result []sequence.Sequence
}

func (r *run) exec(ctx context.Context) ([]sequence.Sequence, error) {
	for r.state != StateDone {
		var (
			next State
			err  error
		)
		switch r.state {
		case StateLocate:
			next, err = r.locate(ctx)
		case StateExpand:
			next, err = r.expand(ctx)
		case StateDirect:
			next, err = r.direct(ctx)
		default:
			return nil, fmt.Errorf("builder: no handler for %s", r.state)
		}
		if err != nil {
			return nil, err
		}
		if !CanTransition(r.state, next) {
			return nil, fmt.Errorf("builder: illegal transition %s -> %s", r.state, next)
		}
		r.logger.Debug().Stringer("from", r.state).Stringer("to", next).Msg("builder transition")
		r.state = next
	}
	if r.result == nil {
		r.result = []sequence.Sequence{}
	}
	return r.result, nil
}

func (r *run) locate(ctx context.Context) (State, error) {
	doc, err := r.b.snapshot(ctx)
	if err != nil {
		return StateDone, err
	}
	item, ok := locator.FindItem(locator.LocateMenuItems(doc, r.b.opts.Locator), r.identifier)
	if !ok {
		r.logger.Info().Msg("menu item not found")
		return StateDone, nil
	}
	r.item = item
	sel, kind := r.b.opts.Strategy.Selector(item)
	r.main = sequence.New(item.Identifier, sequence.Click(sel, kind), sequence.Wait(r.waitMs))
	if item.HasChildren {
		return StateExpand, nil
	}
	return StateDirect, nil
}

func (r *run) expand(ctx context.Context) (State, error) {
	parentSel := r.main.Steps[0].Selector
	if _, err := r.b.click(ctx, r.logger, r.item.Identifier, parentSel); err != nil {
		return StateDone, err
	}
	subs := locator.LocateSubmenu(ctx, r.b.page, r.b.opts.Locator, r.b.opts.SubmenuPolicy)
	if err := ctx.Err(); err != nil {
		return StateDone, err
	}
	if len(subs) == 0 {
		r.logger.Info().Msg("submenu never rendered, keeping main item sequence")
		r.result = []sequence.Sequence{r.main}
		return StateDone, nil
	}
	for _, sub := range subs {
		if sub.Hidden {
			r.logger.Debug().Str("submenu", sub.Identifier).Msg("skipping invisible submenu item")
			continue
		}
		seqs, err := r.processSubmenu(ctx, sub)
		if err != nil {
			return StateDone, err
		}
		r.result = append(r.result, seqs...)
	}
	return StateDone, nil
}

func (r *run) direct(ctx context.Context) (State, error) {
	r.result = []sequence.Sequence{r.main}
	if !r.includeToolbar {
		return StateDone, nil
	}
	found, err := r.b.click(ctx, r.logger, r.item.Identifier, r.main.Steps[0].Selector)
	if err != nil {
		return StateDone, err
	}
	if !found {
		return StateDone, nil
	}
	r.b.settle(ctx, r.logger)
	controls := toolbar.Probe(ctx, r.b.page, r.b.opts.Toolbar, r.b.opts.ToolbarPolicy)
	if err := ctx.Err(); err != nil {
		return StateDone, err
	}
	if len(controls) > 0 {
		r.result = controlSequences(r.main.Name, r.main.Steps, controls, r.b.opts.ControlWaitMs)
	}
	return StateDone, nil
}

// processSubmenu emits the sequences for one submenu entry. With toolbar
// exploration enabled it physically visits the page and always navigates
// back to where it started so the next sibling sees the same baseline.
func (r *run) processSubmenu(ctx context.Context, sub locator.MenuItem) ([]sequence.Sequence, error) {
	parentSel, parentKind := r.b.opts.Strategy.Selector(r.item)
	childSel, childKind := r.b.opts.Strategy.Selector(sub)
	base := sequence.Steps{
		sequence.Click(parentSel, parentKind),
		sequence.Wait(r.waitMs / 2),
		sequence.Click(childSel, childKind),
		sequence.Wait(r.waitMs),
	}
	name := sequence.JoinName(r.item.Identifier, sub.Identifier)
	bare := sequence.Sequence{Name: name, Steps: base}
	if !r.includeToolbar {
		return []sequence.Sequence{bare}, nil
	}

	logger := r.logger.With().Str("submenu", sub.Identifier).Logger()
	preURL := r.b.page.URL()
	controls, exploreErr := r.exploreToolbar(ctx, logger, sub, parentSel, childSel)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.restore(ctx, logger, preURL, exploreErr)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(controls) == 0 {
		return []sequence.Sequence{bare}, nil
	}
	return controlSequences(name, base, controls, r.b.opts.ControlWaitMs), nil
}

func (r *run) exploreToolbar(ctx context.Context, logger zerolog.Logger, sub locator.MenuItem, parentSel, childSel string) ([]toolbar.Control, error) {
	doc, err := r.b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot.QueryOne(doc, childSel) == nil {
		if _, err := r.b.click(ctx, logger, r.item.Identifier, parentSel); err != nil {
			return nil, err
		}
		if err := r.b.sleep(ctx, time.Duration(r.waitMs/2)*time.Millisecond); err != nil {
			return nil, err
		}
	}
	found, err := r.b.page.Click(ctx, childSel)
	if err != nil {
		return nil, fmt.Errorf("click submenu %q: %w", sub.Identifier, err)
	}
	if !found {
		return nil, fmt.Errorf("submenu item %q not found", sub.Identifier)
	}
	r.b.settle(ctx, logger)

	controls := toolbar.Probe(ctx, r.b.page, r.b.opts.Toolbar, r.b.opts.ToolbarPolicy)
	if len(controls) > 0 || ctx.Err() != nil {
		return controls, ctx.Err()
	}

	current := r.b.page.URL()
	expected, ok := urlctx.Expected(current, r.b.opts.URLMarker, r.item.Identifier, sub.Identifier)
	if !ok || expected == current {
		logger.Debug().Str("url", current).Msg("no toolbar and no better URL to try")
		return nil, nil
	}
	logger.Info().Str("from", current).Str("to", expected).Msg("no toolbar, retrying at reconstructed URL")
	if err := r.b.page.Navigate(ctx, expected); err != nil {
		return nil, fmt.Errorf("navigate to reconstructed url: %w", err)
	}
	r.b.settle(ctx, logger)
	return toolbar.Probe(ctx, r.b.page, r.b.opts.Toolbar, r.b.opts.ToolbarPolicy), ctx.Err()
}

// restore returns the page to preURL. When that fails the sliced main-menu
// URL is tried; a failure there is only logged.
func (r *run) restore(ctx context.Context, logger zerolog.Logger, preURL string, exploreErr error) {
	if exploreErr != nil {
		logger.Warn().Err(exploreErr).Msg("toolbar exploration failed")
	}
	err := r.b.page.Navigate(ctx, preURL)
	if err == nil {
		r.b.settle(ctx, logger)
		return
	}
	if ctx.Err() != nil {
		return
	}
	fallback, ok := urlctx.MainMenuURL(preURL, r.b.opts.URLMarker)
	if !ok {
		logger.Error().Err(err).Str("url", preURL).Msg("could not restore baseline")
		return
	}
	if navErr := r.b.page.Navigate(ctx, fallback); navErr != nil {
		logger.Error().Err(errors.Join(err, navErr)).Str("url", preURL).Str("fallback", fallback).Msg("could not restore baseline")
		return
	}
	logger.Info().Str("fallback", fallback).Msg("restored approximate baseline")
	r.b.settle(ctx, logger)
}
