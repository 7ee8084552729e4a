package toolbar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/sequence"
	"github.com/polzovatel/navshot/internal/snapshot"
	"github.com/polzovatel/navshot/internal/toolbar"
)

const withToolbar = `
<html><body><main>
	<div>
		<div class="title">Daily report</div>
		<div class="toolbar">
			<button data-component-path="report/toolbar/add"><i class="material-icons">add</i></button>
			<button id="btn-export" disabled>Export CSV</button>
			<button aria-label="Share report"></button>
		</div>
	</div>
</main></body></html>`

func mustParse(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := snapshot.Parse(markup)
	require.NoError(t, err)
	return doc
}

func TestExtractControlsThreeButtonsSecondDisabled(t *testing.T) {
	doc := mustParse(t, withToolbar)
	controls := toolbar.ExtractControls(doc, toolbar.DefaultProfile())
	require.Len(t, controls, 3)

	assert.Equal(t, toolbar.Control{
		Name:         "Add",
		Selector:     "//*[@data-component-path='report/toolbar/add']",
		SelectorKind: sequence.KindComponentPath,
		Kind:         toolbar.KindButton,
		Enabled:      true,
		Position:     1,
	}, controls[0])

	assert.Equal(t, "Export CSV", controls[1].Name)
	assert.False(t, controls[1].Enabled)
	assert.Equal(t, "//*[@id='btn-export']", controls[1].Selector)
	assert.Equal(t, sequence.KindID, controls[1].SelectorKind)

	assert.Equal(t, "Share report", controls[2].Name)
	assert.True(t, controls[2].Enabled)
	assert.Equal(t, sequence.KindPositional, controls[2].SelectorKind)

	for _, c := range controls {
		nodes, err := snapshot.Query(doc, c.Selector)
		require.NoError(t, err)
		assert.Len(t, nodes, 1, c.Selector)
	}
}

func TestExtractControlsStatesAndNames(t *testing.T) {
	doc := mustParse(t, `<html><body><main><div>
		<div>placeholder</div>
		<div>
			<div class="primary-action"><button>Nested</button></div>
			<button class="btn is-disabled">Soft disabled</button>
			<button aria-disabled="true">Aria disabled</button>
			<fieldset disabled><button>Inside fieldset</button></fieldset>
			<button style="display: none">Gone</button>
			<button style="color:red; visibility:hidden !important">Invisible</button>
			<button style="display:block">Shown</button>
			<button><i class="icon-unknown"></i></button>
			<button>Save</button>
			<button>Save</button>
		</div>
	</div></main></body></html>`)

	controls := toolbar.ExtractControls(doc, toolbar.DefaultProfile())
	names := make([]string, 0, len(controls))
	enabled := make([]bool, 0, len(controls))
	for _, c := range controls {
		names = append(names, c.Name)
		enabled = append(enabled, c.Enabled)
	}
	assert.Equal(t, []string{"Nested", "Soft disabled", "Aria disabled", "Inside fieldset", "Shown", "Button 8", "Save", "Save"}, names)
	assert.Equal(t, []bool{true, false, false, false, true, true, true, true}, enabled)
	assert.Equal(t, toolbar.KindControl, controls[0].Kind)
	assert.Equal(t, 9, controls[6].Position)
	assert.Equal(t, 10, controls[7].Position)
	assert.NotEqual(t, controls[6].Selector, controls[7].Selector)
}

func TestExtractControlsDocumentOrder(t *testing.T) {
	doc := mustParse(t, `<html><body><main><div>
		<div>placeholder</div>
		<div>
			<button>First</button>
			<div class="primary-action">Second</div>
			<span><button>Third</button></span>
			<div class="primary-action"><span>Fourth</span></div>
		</div>
	</div></main></body></html>`)

	controls := toolbar.ExtractControls(doc, toolbar.DefaultProfile())
	require.Len(t, controls, 4)
	for i, want := range []string{"First", "Second", "Third", "Fourth"} {
		assert.Equal(t, want, controls[i].Name)
		assert.Equal(t, i+1, controls[i].Position)
	}
	assert.Equal(t, []toolbar.Kind{toolbar.KindButton, toolbar.KindControl, toolbar.KindButton, toolbar.KindControl},
		[]toolbar.Kind{controls[0].Kind, controls[1].Kind, controls[2].Kind, controls[3].Kind})
}

func TestContainerRequiresClickable(t *testing.T) {
	doc := mustParse(t, `<html><body><main><div><div></div><div><span>no buttons</span></div></div></main></body></html>`)
	assert.Nil(t, toolbar.Container(doc, toolbar.DefaultProfile()))
	assert.Empty(t, toolbar.ExtractControls(doc, toolbar.DefaultProfile()))
}

type scriptedSource struct {
	docs  []*html.Node
	calls int
}

func (s *scriptedSource) Snapshot(context.Context) (*html.Node, error) {
	i := s.calls
	if i >= len(s.docs) {
		i = len(s.docs) - 1
	}
	s.calls++
	return s.docs[i], nil
}

func TestWaitForContainerPolls(t *testing.T) {
	loading := mustParse(t, `<html><body><main><p>loading</p></main></body></html>`)
	ready := mustParse(t, withToolbar)
	src := &scriptedSource{docs: []*html.Node{loading, ready}}

	container, doc := toolbar.WaitForContainer(context.Background(), src, toolbar.DefaultProfile(), poll.Policy{Attempts: 5, Interval: time.Millisecond})
	require.NotNil(t, container)
	assert.Same(t, ready, doc)
	assert.Equal(t, 2, src.calls)
}

func TestProbeWithoutToolbar(t *testing.T) {
	src := &scriptedSource{docs: []*html.Node{mustParse(t, `<html><body></body></html>`)}}
	controls := toolbar.Probe(context.Background(), src, toolbar.DefaultProfile(), poll.Policy{Attempts: 3, Interval: time.Millisecond})
	assert.Nil(t, controls)
	assert.Equal(t, 3, src.calls)
}
