package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/html"

	"github.com/polzovatel/navshot/internal/builder"
	"github.com/polzovatel/navshot/internal/capture"
	"github.com/polzovatel/navshot/internal/events"
	"github.com/polzovatel/navshot/internal/fakedom"
	"github.com/polzovatel/navshot/internal/orchestrator"
	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/sequence"
	"github.com/polzovatel/navshot/internal/snapshot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const baseURL = "https://erp.example/#/app/acme/home"

const app = `<html><body>
<nav class="side-menu"><ul>
	<li class="menu-item menu-header">Workspace</li>
	<li class="menu-item">Home</li>
	<li class="menu-item"><span class="menu-title">Reports</span><i class="chevron">chevron_right</i></li>
</ul></nav>
<main><div><button id="ok">Ok</button><button id="boom">Boom</button></div></main>
</body></html>`

const expanded = `<html><body>
<nav class="side-menu"><ul>
	<li class="menu-item">Home</li>
	<li class="menu-item"><span class="menu-title">Reports</span><i class="chevron">chevron_right</i></li>
</ul></nav>
<div class="submenu-panel"><ul><li class="submenu-item">Daily</li><li class="submenu-item">Weekly</li></ul></div>
</body></html>`

func fixture(t *testing.T) (*fakedom.Surface, *orchestrator.Orchestrator, *events.Recorder) {
	t.Helper()
	s := fakedom.NewSurface()
	s.Route(baseURL, app)
	s.OnClick = func(p *fakedom.Page, target *html.Node) {
		switch snapshot.Text(target) {
		case "Reports":
			p.Show(expanded)
		case "Boom":
			p.Show(`<html><body><div class="error-banner">Something went wrong</div></body></html>`)
		}
	}

	bopts := builder.DefaultOptions()
	bopts.SubmenuPolicy = poll.Policy{Attempts: 2, Interval: time.Millisecond}
	bopts.ToolbarPolicy = poll.Policy{Attempts: 2, Interval: time.Millisecond}
	bld := builder.New(s, bopts, zerolog.Nop())

	copts := capture.DefaultOptions()
	copts.WaitSeconds = 1
	copts.Tick = time.Millisecond
	var rec events.Recorder
	bus := events.NewBus(zerolog.Nop())
	bus.Subscribe(rec.Handle, events.SequenceTaken, events.SequenceError)
	engine := capture.New(s, copts, bus, zerolog.Nop())

	cfg := orchestrator.DefaultConfig()
	cfg.MenuPolicy = poll.Policy{Attempts: 2, Interval: time.Millisecond}
	return s, orchestrator.New(cfg, s, bld, engine, bus, zerolog.Nop()), &rec
}

func TestDiscover(t *testing.T) {
	s, o, _ := fixture(t)
	items, err := o.Discover(context.Background(), baseURL)
	require.NoError(t, err)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.Identifier)
	}
	assert.Equal(t, []string{"Home", "Reports"}, ids)
	assert.True(t, items[1].HasChildren)
	assert.Equal(t, []string{baseURL}, s.Navigations())
}

func TestDiscoverEmptyMenu(t *testing.T) {
	s, o, _ := fixture(t)
	s.Route(baseURL, `<html><body><main>loading</main></body></html>`)
	items, err := o.Discover(context.Background(), baseURL)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestGenerateReloadsBaselinePerItem(t *testing.T) {
	s, o, _ := fixture(t)
	seqs, err := o.Generate(context.Background(), baseURL, []string{"Reports", "Home", "Ghost"}, orchestrator.GenerateOptions{WaitMs: 2000})
	require.NoError(t, err)

	var names []string
	for _, seq := range seqs {
		names = append(names, seq.Name)
	}
	assert.Equal(t, []string{"Reports - Daily", "Reports - Weekly", "Home", "Ghost"}, names)
	assert.Equal(t, []string{baseURL, baseURL, baseURL}, s.Navigations())

	ghost := seqs[3]
	require.Len(t, ghost.Steps, 2)
	assert.Equal(t, sequence.StepClick, ghost.Steps[0].Type)
	assert.Equal(t, 2000, ghost.Steps[1].DurationMs)
}

func TestGenerateFailsWhenBaselineCannotLoad(t *testing.T) {
	s, o, _ := fixture(t)
	s.FailNavigation(baseURL, assert.AnError)
	_, err := o.Generate(context.Background(), baseURL, []string{"Home"}, orchestrator.GenerateOptions{WaitMs: 1000})
	require.ErrorIs(t, err, assert.AnError)
}

func TestCaptureAllSkipsRenderFailures(t *testing.T) {
	_, o, rec := fixture(t)
	seqs := []sequence.Sequence{
		sequence.New("Boom", sequence.Click("//button[@id='boom']", sequence.KindID)),
		sequence.New("Ok", sequence.Click("//button[@id='ok']", sequence.KindID)),
	}
	var seen []int
	results, err := o.CaptureAll(context.Background(), baseURL, seqs, orchestrator.CaptureOptions{
		Preset: "mobile",
		RunID:  "r1",
		OnResult: func(i int, _ *capture.Result) error {
			seen = append(seen, i)
			return nil
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Ok", results[0].Sequence)
	assert.Equal(t, "r1", results[0].RunID)
	assert.Equal(t, []int{1}, seen)
	assert.Equal(t, []events.Kind{events.SequenceError, events.SequenceTaken}, rec.Kinds())
}

func TestCaptureAllAbortsOnUnexpectedFailure(t *testing.T) {
	_, o, _ := fixture(t)
	seqs := []sequence.Sequence{
		sequence.New("Ok", sequence.Click("//button[@id='ok']", sequence.KindID)),
		sequence.New("Broken", sequence.Click("//button[", sequence.KindPositional)),
		sequence.New("Never", sequence.Click("//button[@id='ok']", sequence.KindID)),
	}
	results, err := o.CaptureAll(context.Background(), baseURL, seqs, orchestrator.CaptureOptions{Preset: "mobile"})
	require.Error(t, err)
	assert.False(t, capture.IsRender(err))
	require.Len(t, results, 1)
	assert.Equal(t, "Ok", results[0].Sequence)
}

func TestCaptureAllWithoutSequences(t *testing.T) {
	s, o, _ := fixture(t)
	results, err := o.CaptureAll(context.Background(), baseURL, nil, orchestrator.CaptureOptions{Preset: "tablet"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Sequence)
	assert.Equal(t, []string{baseURL}, s.Loads())
}
