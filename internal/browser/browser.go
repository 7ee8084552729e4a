// Package browser is the playwright-go backend: it launches Chromium and
// exposes one page as the live document explored by the builder and as the
// render surface of the capture engine.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/polzovatel/navshot/internal/builder"
	"github.com/polzovatel/navshot/internal/capture"
	"github.com/polzovatel/navshot/internal/diag"
	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/snapshot"
)

const (
	defaultNavTimeout = 30 * time.Second
	defaultActionTime = 10 * time.Second
	headlessEnv       = "NAVSHOT_HEADLESS"
	blankURL          = "about:blank"
	xpathPrefix       = "xpath="
)

var (
	_ builder.Page    = (*Page)(nil)
	_ capture.Surface = (*Page)(nil)
)

// Options configure the launched browser and its page.
type Options struct {
	Headless         bool
	HeadlessSet      bool
	StorageStatePath string
	FrameURLContains string
	NavTimeout       time.Duration
	Viewport         capture.Preset
	ConsoleBuffer    int
}

// Launcher owns playwright lifecycle.
type Launcher struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	headless bool
	logger   zerolog.Logger
}

// NewLauncher starts playwright and Chromium. Headless mode comes from
// opts when HeadlessSet, else from NAVSHOT_HEADLESS.
func NewLauncher(ctx context.Context, opts Options, logger zerolog.Logger) (*Launcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	headless := opts.Headless
	if !opts.HeadlessSet {
		headless = parseBoolEnv(headlessEnv, true)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	logger = logger.With().Str("comp", "browser").Logger()
	logger.Debug().Bool("headless", headless).Msg("chromium launched")
	return &Launcher{pw: pw, browser: browser, headless: headless, logger: logger}, nil
}

// NewPage opens a fresh context and page. A storage state file, when it
// exists, restores the session cookies of an earlier login.
func (l *Launcher) NewPage(ctx context.Context, opts Options) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp, _, _ = capture.LookupPreset(capture.DefaultPreset)
	}
	ctxOpts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
		Viewport:          &playwright.Size{Width: vp.Width, Height: vp.Height},
	}
	if path := strings.TrimSpace(opts.StorageStatePath); path != "" {
		if _, err := os.Stat(path); err == nil {
			ctxOpts.StorageStatePath = playwright.String(path)
		} else {
			l.logger.Warn().Str("path", path).Msg("storage state not found, starting without session")
		}
	}
	bctx, err := l.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	navTimeout := opts.NavTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavTimeout
	}
	page.SetDefaultTimeout(float64(navTimeout.Milliseconds()))

	p := &Page{
		context:    bctx,
		page:       page,
		frameMatch: strings.TrimSpace(opts.FrameURLContains),
		navTimeout: navTimeout,
		queue:      diag.NewQueue(opts.ConsoleBuffer),
		logger:     l.logger,
		viewport:   vp,
	}
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		p.queue.Push(msg.Type(), msg.Text())
	})
	page.OnPageError(func(err error) {
		p.queue.Push("error", err.Error())
	})
	return p, nil
}

func (l *Launcher) Close() error {
	if l.browser != nil {
		_ = l.browser.Close()
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}

// Page is one browser tab. The document it inspects is the main frame, or
// the first frame whose URL contains the configured substring when the
// application is embedded in an iframe.
type Page struct {
	context    playwright.BrowserContext
	page       playwright.Page
	frameMatch string
	navTimeout time.Duration
	queue      *diag.Queue
	logger     zerolog.Logger

	mu       sync.Mutex
	viewport capture.Preset
}

func (p *Page) Close(ctx context.Context) error {
	_ = ctx
	if p.page != nil {
		_ = p.page.Close()
	}
	if p.context != nil {
		return p.context.Close()
	}
	return nil
}

func (p *Page) frame() playwright.Frame {
	if p.frameMatch == "" {
		return p.page.MainFrame()
	}
	frames := p.page.Frames()
	urls := make([]string, len(frames))
	for i, f := range frames {
		urls[i] = f.URL()
	}
	if i := matchFrame(urls, p.frameMatch); i >= 0 {
		return frames[i]
	}
	return p.page.MainFrame()
}

// matchFrame returns the index of the first url containing needle, or -1.
func matchFrame(urls []string, needle string) int {
	if needle == "" {
		return -1
	}
	for i, u := range urls {
		if strings.Contains(u, needle) {
			return i
		}
	}
	return -1
}

// Snapshot parses the current HTML of the target frame.
func (p *Page) Snapshot(ctx context.Context) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := p.frame().Content()
	if err != nil {
		return nil, wrap(err)
	}
	return snapshot.Parse(content)
}

// Click clicks the first element matching an XPath selector. A selector
// matching nothing reports found=false without error.
func (p *Page) Click(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	loc := p.frame().Locator(locatorFor(selector))
	n, err := loc.Count()
	if err != nil {
		return false, wrap(err)
	}
	if n == 0 {
		return false, nil
	}
	first := loc.First()
	_ = first.ScrollIntoViewIfNeeded()
	if err := first.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(defaultActionTime.Milliseconds())),
	}); err != nil {
		return true, wrap(err)
	}
	return true, nil
}

func locatorFor(selector string) string {
	if strings.HasPrefix(selector, xpathPrefix) {
		return selector
	}
	return xpathPrefix + selector
}

// Navigate moves the target frame to url and waits for its load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.frame().Goto(url, playwright.FrameGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(p.navTimeout.Milliseconds())),
	})
	return wrap(err)
}

func (p *Page) URL() string {
	return p.frame().URL()
}

// Settle waits for network idle and then for the DOM to stop mutating.
func (p *Page) Settle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	f := p.frame()
	if err := f.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		_ = f.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
			State:   playwright.LoadStateDomcontentloaded,
			Timeout: playwright.Float(1000),
		})
	}
	_, err := f.Evaluate(stableDOMScript, quietMs)
	return wrap(err)
}

// Load navigates the tab to url. When a target frame is configured Load
// also waits for that frame to attach and load.
func (p *Page) Load(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = p.navTimeout
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return loadError(ctx, err)
	}
	if p.frameMatch == "" {
		return nil
	}
	var target playwright.Frame
	err = poll.Until(ctx, poll.Policy{Attempts: 20, Interval: 250 * time.Millisecond}, func(context.Context, int) (bool, error) {
		for _, f := range p.page.Frames() {
			if strings.Contains(f.URL(), p.frameMatch) {
				target = f
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrExhausted) {
			return fmt.Errorf("%w: frame matching %q never attached", capture.ErrLoadTimeout, p.frameMatch)
		}
		return err
	}
	if err := target.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return loadError(ctx, err)
	}
	return nil
}

func loadError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", capture.ErrLoadTimeout, wrap(err))
	}
	return wrap(err)
}

// Reset blanks the tab and restores the configured viewport.
func (p *Page) Reset(context.Context) error {
	_, err := p.page.Goto(blankURL)
	if err != nil {
		return wrap(err)
	}
	p.mu.Lock()
	vp := p.viewport
	p.mu.Unlock()
	return wrap(p.page.SetViewportSize(vp.Width, vp.Height))
}

func (p *Page) ImagesComplete(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := p.frame().Evaluate(imagesCompleteScript)
	if err != nil {
		return false, wrap(err)
	}
	done, _ := v.(bool)
	return done, nil
}

func (p *Page) Metrics(ctx context.Context) (capture.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return capture.Metrics{}, err
	}
	v, err := p.frame().Evaluate(metricsScript)
	if err != nil {
		return capture.Metrics{}, wrap(err)
	}
	return decodeMetrics(v)
}

// PinFixed switches fixed elements to absolute positioning for a
// full-height capture.
func (p *Page) PinFixed(ctx context.Context) (func(context.Context) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := p.frame()
	if _, err := f.Evaluate(pinFixedScript, pinnedAttr); err != nil {
		return nil, wrap(err)
	}
	return func(context.Context) error {
		_, err := f.Evaluate(unpinFixedScript, pinnedAttr)
		return wrap(err)
	}, nil
}

// Screenshot resizes the viewport to width x height and captures it.
func (p *Page) Screenshot(ctx context.Context, width, height int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.page.SetViewportSize(width, height); err != nil {
		return nil, wrap(err)
	}
	if _, err := p.frame().Evaluate(stableDOMScript, quietMs); err != nil {
		p.logger.Debug().Err(err).Msg("dom did not settle after resize")
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(false),
	})
	return data, wrap(err)
}

func (p *Page) Diagnostics() *diag.Queue { return p.queue }

// SaveState writes the cookies and local storage of the browser context to
// path so later runs can start logged in.
func (p *Page) SaveState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := p.context.StorageState()
	if err != nil {
		return wrap(err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}

func parseBoolEnv(name string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
