package fakedom

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/polzovatel/navshot/internal/capture"
	"github.com/polzovatel/navshot/internal/diag"
)

// BlankURL is where Reset leaves the surface.
const BlankURL = "about:blank"

// Surface extends Page with the render-surface operations of the capture
// engine.
type Surface struct {
	*Page

	mu          sync.Mutex
	queue       *diag.Queue
	imagesAfter int
	imageChecks int
	metrics     capture.Metrics
	loadErr     error
	hangOnLoad  bool
	loads       []string
	resets      int
	pinned      int
	restored    int
	shots       []image.Point

	// OnLoad runs after a successful Load, e.g. to push console lines or
	// schedule a banner.
	OnLoad func(s *Surface, url string)
}

// NewSurface returns a blank surface; pages are served from routes.
func NewSurface() *Surface {
	return &Surface{
		Page:  New(BlankURL, "<html><body></body></html>"),
		queue: diag.NewQueue(0),
	}
}

// SetImagesCompleteAfter makes ImagesComplete report false for the first n
// checks of every load.
func (s *Surface) SetImagesCompleteAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imagesAfter = n
}

// SetMetrics sets what Metrics reports.
func (s *Surface) SetMetrics(m capture.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// FailLoad makes Load return err.
func (s *Surface) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// HangOnLoad makes Load block until its context ends.
func (s *Surface) HangOnLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hangOnLoad = true
}

// Load navigates to a routed url.
func (s *Surface) Load(ctx context.Context, url string, _ time.Duration) error {
	s.mu.Lock()
	s.loads = append(s.loads, url)
	s.imageChecks = 0
	loadErr, hang := s.loadErr, s.hangOnLoad
	s.mu.Unlock()

	if hang {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", capture.ErrLoadTimeout, ctx.Err())
	}
	if loadErr != nil {
		return loadErr
	}
	if err := s.Navigate(ctx, url); err != nil {
		return err
	}
	if s.OnLoad != nil {
		s.OnLoad(s, url)
	}
	return nil
}

// Reset blanks the page.
func (s *Surface) Reset(context.Context) error {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
	s.Go(BlankURL, "<html><body></body></html>")
	return nil
}

func (s *Surface) ImagesComplete(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageChecks++
	return s.imageChecks > s.imagesAfter, nil
}

func (s *Surface) Metrics(ctx context.Context) (capture.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return capture.Metrics{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics, nil
}

func (s *Surface) PinFixed(context.Context) (func(context.Context) error, error) {
	s.mu.Lock()
	s.pinned++
	s.mu.Unlock()
	return func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.restored++
		return nil
	}, nil
}

// Screenshot renders a flat width x height PNG.
func (s *Surface) Screenshot(ctx context.Context, width, height int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.shots = append(s.shots, image.Pt(width, height))
	s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Surface) Diagnostics() *diag.Queue { return s.queue }

// Loads returns every Load target in order.
func (s *Surface) Loads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...)
}

// Resets counts Reset calls.
func (s *Surface) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Pins reports how often fixed elements were pinned and restored.
func (s *Surface) Pins() (pinned, restored int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned, s.restored
}

// Shots returns the requested screenshot sizes.
func (s *Surface) Shots() []image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]image.Point(nil), s.shots...)
}
