// Package capture drives the shared render surface into a target state and
// rasterizes it: load the URL, race the render countdown against known
// failure signatures, replay an optional action sequence, measure and
// screenshot.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/navshot/internal/diag"
	"github.com/polzovatel/navshot/internal/events"
	"github.com/polzovatel/navshot/internal/executor"
	"github.com/polzovatel/navshot/internal/sequence"
	"github.com/polzovatel/navshot/internal/snapshot"
)

// Surface is the single live document captures run on.
type Surface interface {
	snapshot.Source
	executor.Clicker
	// Load navigates to url and waits for its load signal, at most timeout.
	// A missed deadline is reported as ErrLoadTimeout.
	Load(ctx context.Context, url string, timeout time.Duration) error
	// Reset blanks the surface.
	Reset(ctx context.Context) error
	URL() string
	ImagesComplete(ctx context.Context) (bool, error)
	Metrics(ctx context.Context) (Metrics, error)
	// PinFixed turns fixed-position elements absolute and returns the
	// function restoring them.
	PinFixed(ctx context.Context) (func(context.Context) error, error)
	// Screenshot renders the viewport resized to width x height as PNG.
	Screenshot(ctx context.Context, width, height int) ([]byte, error)
	Diagnostics() *diag.Queue
}

// Options tune the engine.
type Options struct {
	WaitSeconds      int
	Tick             time.Duration
	GraceTicks       int
	LoadTimeout      time.Duration
	CleanupTimeout   time.Duration
	BannerXPaths     []string
	BannerSignatures []string
	Signatures       []string
	OverlayHeight    int
	ThumbnailWidth   int
}

// DefaultOptions returns the settings used against the target application.
func DefaultOptions() Options {
	return Options{
		WaitSeconds:    5,
		Tick:           time.Second,
		GraceTicks:     3,
		LoadTimeout:    30 * time.Second,
		CleanupTimeout: 5 * time.Second,
		BannerXPaths: []string{
			"//*[contains(@class, 'error-banner')]",
			"//*[contains(@class, 'el-message--error')]",
			"//*[@role='alert']",
		},
		BannerSignatures: []string{
			"Something went wrong",
			"An error occurred",
			"Page not found",
			"Access denied",
			"Failed to load",
		},
		Signatures:     diag.DefaultSignatures,
		OverlayHeight:  24,
		ThumbnailWidth: 320,
	}
}

// Request describes one capture.
type Request struct {
	URL      string
	Preset   string
	FullPage bool
	Sequence *sequence.Sequence
	RunID    string
}

// Result is a successful capture.
type Result struct {
	RunID     string           `json:"runId,omitempty"`
	Sequence  string           `json:"sequence,omitempty"`
	SourceURL string           `json:"sourceUrl"`
	Preset    string           `json:"preset"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	FullPage  bool             `json:"fullPage"`
	Elapsed   time.Duration    `json:"elapsed"`
	Image     []byte           `json:"-"`
	Thumbnail []byte           `json:"-"`
	Report    *executor.Report `json:"report,omitempty"`
	Console   []diag.Line      `json:"console,omitempty"`
}

// Engine captures screenshots. Invocations are serialized: the surface is
// one shared document.
type Engine struct {
	mu      sync.Mutex
	surface Surface
	exec    *executor.Executor
	opts    Options
	banners diag.Scanner
	console diag.Scanner
	bus     *events.Bus
	logger  zerolog.Logger
	now     func() time.Time
}

// New returns an engine over surface. bus may be nil.
func New(surface Surface, opts Options, bus *events.Bus, logger zerolog.Logger) *Engine {
	def := DefaultOptions()
	if opts.Tick <= 0 {
		opts.Tick = def.Tick
	}
	if opts.WaitSeconds < 0 {
		opts.WaitSeconds = 0
	}
	if opts.GraceTicks < 0 {
		opts.GraceTicks = 0
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = def.LoadTimeout
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = def.CleanupTimeout
	}
	logger = logger.With().Str("comp", "capture").Logger()
	return &Engine{
		surface: surface,
		exec:    executor.New(logger),
		opts:    opts,
		banners: diag.Scanner{Signatures: append(append([]string(nil), opts.BannerSignatures...), opts.Signatures...)},
		console: diag.NewScanner(opts.Signatures...),
		bus:     bus,
		logger:  logger,
		now:     time.Now,
	}
}

// Capture runs one capture to completion. The surface is reset to blank on
// every path.
func (e *Engine) Capture(ctx context.Context, req Request) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	preset, full, err := LookupPreset(req.Preset)
	if err != nil {
		return nil, err
	}
	c := &captureRun{
		e:        e,
		req:      req,
		preset:   preset,
		fullPage: full || req.FullPage,
		start:    e.now(),
		logger:   e.logger.With().Str("url", req.URL).Str("sequence", req.sequenceName()).Logger(),
	}
	defer c.cleanup(ctx)

	// Lines left over from earlier activity belong to another capture.
	e.surface.Diagnostics().Drain()
	e.emit(events.CaptureStarted, req, fmt.Sprintf("capturing %s", req.URL))
	res, err := c.exec(ctx)
	if err != nil {
		e.emit(events.CaptureFailed, req, err.Error())
		return nil, err
	}
	e.emit(events.ScreenshotTaken, req, fmt.Sprintf("%dx%d in %s", res.Width, res.Height, res.Elapsed.Round(time.Millisecond)))
	return res, nil
}

func (e *Engine) emit(kind events.Kind, req Request, msg string) {
	e.bus.Emit(events.Event{Kind: kind, URL: req.URL, Sequence: req.sequenceName(), Message: msg})
}

func (r Request) sequenceName() string {
	if r.Sequence == nil {
		return ""
	}
	return r.Sequence.Name
}

func (e *Engine) fail(req Request, kind ErrorKind, reason string, err error) *Error {
	return &Error{URL: req.URL, Sequence: req.sequenceName(), Kind: kind, Reason: reason, Err: err}
}

// unexpected wraps err as an Unexpected capture error unless it already is
// a capture error or a cancellation.
func (e *Engine) unexpected(req Request, reason string, err error) error {
	var ce *Error
	if errors.As(err, &ce) || errors.Is(err, context.Canceled) {
		return err
	}
	return e.fail(req, KindUnexpected, reason, err)
}
