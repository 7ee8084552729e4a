package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/polzovatel/navshot/internal/browser"
	"github.com/polzovatel/navshot/internal/builder"
	"github.com/polzovatel/navshot/internal/capture"
	"github.com/polzovatel/navshot/internal/config"
	"github.com/polzovatel/navshot/internal/events"
	"github.com/polzovatel/navshot/internal/logging"
	"github.com/polzovatel/navshot/internal/orchestrator"
)

// Surface is a page usable both for exploration and for capture.
type Surface interface {
	builder.Page
	capture.Surface
}

type stateSaver interface {
	SaveState(ctx context.Context, path string) error
}

// session is one browser page with the components driving it.
type session struct {
	page  Surface
	orch  *orchestrator.Orchestrator
	bus   *events.Bus
	close func() error
}

type opener func(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*session, error)

func newSession(cfg *config.Config, page Surface, logger zerolog.Logger, closeFn func() error) *session {
	bus := events.NewBus(logger)
	bus.Subscribe(logEvent(logging.Component(logger, "events")))
	bld := builder.New(page, cfg.BuilderOptions(), logging.Component(logger, "builder"))
	engine := capture.New(page, cfg.CaptureOptions(), bus, logger)
	orch := orchestrator.New(cfg.OrchestratorConfig(), page, bld, engine, bus, logger)
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &session{page: page, orch: orch, bus: bus, close: closeFn}
}

func openBrowser(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*session, error) {
	opts := cfg.BrowserOptions()
	launcher, err := browser.NewLauncher(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("browser init: %w", err)
	}
	page, err := launcher.NewPage(ctx, opts)
	if err != nil {
		_ = launcher.Close()
		return nil, fmt.Errorf("browser page: %w", err)
	}
	return newSession(cfg, page, logger, func() error {
		return errors.Join(page.Close(context.Background()), launcher.Close())
	}), nil
}

func logEvent(logger zerolog.Logger) events.Handler {
	return func(ev events.Event) {
		e := logger.Debug()
		switch ev.Kind {
		case events.CaptureFailed, events.SequenceError:
			e = logger.Warn()
		case events.ScreenshotTaken, events.SequenceTaken:
			e = logger.Info()
		}
		e.Str("event", string(ev.Kind)).Str("url", ev.URL).Str("sequence", ev.Sequence).Msg(ev.Message)
	}
}
