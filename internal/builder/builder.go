// Package builder explores the target application's menus and emits one
// action sequence per reachable menu, submenu and toolbar-control target.
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/polzovatel/navshot/internal/locator"
	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/sequence"
	"github.com/polzovatel/navshot/internal/snapshot"
	"github.com/polzovatel/navshot/internal/toolbar"
)

// DefaultControlWaitMs is the pause appended after every toolbar click.
const DefaultControlWaitMs = 2000

// Page is the live document the builder explores.
type Page interface {
	snapshot.Source
	Click(ctx context.Context, selector string) (bool, error)
	Navigate(ctx context.Context, url string) error
	URL() string
	// Settle waits for the document to finish loading after navigation,
	// bounded by timeout.
	Settle(ctx context.Context, timeout time.Duration) error
}

// Options configures exploration.
type Options struct {
	Locator       locator.Profile
	Toolbar       toolbar.Profile
	Strategy      locator.Strategy
	SubmenuPolicy poll.Policy
	ToolbarPolicy poll.Policy
	ControlWaitMs int
	SettleTimeout time.Duration
	URLMarker     string
}

// DefaultOptions returns the options used for the target application.
func DefaultOptions() Options {
	return Options{
		Locator:       locator.DefaultProfile(),
		Toolbar:       toolbar.DefaultProfile(),
		Strategy:      locator.TextStrategy{},
		SubmenuPolicy: poll.Policy{Attempts: 10, Interval: 300 * time.Millisecond},
		ToolbarPolicy: poll.Policy{Attempts: 10, Interval: 500 * time.Millisecond},
		ControlWaitMs: DefaultControlWaitMs,
		SettleTimeout: 10 * time.Second,
	}
}

// Builder generates sequences against one page. It is not safe for
// concurrent use: exploration clicks through the shared document.
type Builder struct {
	page   Page
	opts   Options
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a builder driving page.
func New(page Page, opts Options, logger zerolog.Logger) *Builder {
	if opts.Strategy == nil {
		opts.Strategy = locator.TextStrategy{}
	}
	if opts.ControlWaitMs <= 0 {
		opts.ControlWaitMs = DefaultControlWaitMs
	}
	return &Builder{page: page, opts: opts, logger: logger, sleep: poll.Sleep}
}

// Fallback is the bare main-item sequence used when the item could not be
// explored at all.
func (b *Builder) Fallback(identifier string, waitMs int) sequence.Sequence {
	sel, kind := b.opts.Strategy.ForIdentifier(identifier, b.opts.Locator.ItemClass)
	return sequence.New(snapshot.NormalizeSpace(identifier), sequence.Click(sel, kind), sequence.Wait(waitMs))
}

// BuildForMenuItem explores the item named identifier starting from the
// current document. An empty result means the item was not found; the
// caller decides whether to fall back. Errors are reserved for
// cancellation and for a page that can no longer be inspected.
func (b *Builder) BuildForMenuItem(ctx context.Context, identifier string, waitMs int, includeToolbar bool) ([]sequence.Sequence, error) {
	r := &run{
		b:              b,
		identifier:     identifier,
		waitMs:         waitMs,
		includeToolbar: includeToolbar,
		logger:         b.logger.With().Str("item", identifier).Logger(),
	}
	return r.exec(ctx)
}

func controlSequences(name string, base sequence.Steps, controls []toolbar.Control, waitMs int) []sequence.Sequence {
	out := make([]sequence.Sequence, 0, len(controls))
	for _, c := range controls {
		if !c.Enabled {
			out = append(out, sequence.Sequence{
				Name:  sequence.JoinName(name, c.Name) + " (disabled)",
				Steps: base.Clone(),
			})
			continue
		}
		out = append(out, sequence.Sequence{
			Name:  sequence.JoinName(name, c.Name),
			Steps: base.Append(sequence.Click(c.Selector, c.SelectorKind), sequence.Wait(waitMs)),
		})
	}
	return out
}

func (b *Builder) click(ctx context.Context, logger zerolog.Logger, what, selector string) (bool, error) {
	found, err := b.page.Click(ctx, selector)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		logger.Warn().Err(err).Str("target", what).Str("selector", selector).Msg("click failed")
		return false, nil
	}
	if !found {
		logger.Debug().Str("target", what).Str("selector", selector).Msg("click target not found")
	}
	return found, nil
}

func (b *Builder) settle(ctx context.Context, logger zerolog.Logger) {
	if err := b.page.Settle(ctx, b.opts.SettleTimeout); err != nil && ctx.Err() == nil {
		logger.Debug().Err(err).Msg("page did not settle")
	}
}

func (b *Builder) snapshot(ctx context.Context) (*html.Node, error) {
	doc, err := b.page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", b.page.URL(), err)
	}
	return doc, nil
}
