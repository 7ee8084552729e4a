package snapshot_test

import (
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/polzovatel/navshot/internal/snapshot"
)

const page = `
<html>
<head><title> Console </title></head>
<body>
	<div id="root">
		<ul class="menu-list">
			<li class="menu-item active"><i class="icon">home</i>  Home  </li>
			<li class="menu-item"><span class="menu-title">Reports</span><i class="chevron">chevron_right</i></li>
		</ul>
		<div><p>one</p><p>two</p></div>
	</div>
</body>
</html>`

func parse(t *testing.T) *html.Node {
	t.Helper()
	doc, err := snapshot.Parse(page)
	require.NoError(t, err)
	return doc
}

func TestTextHelpers(t *testing.T) {
	doc := parse(t)
	items, err := snapshot.Query(doc, "//li")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "home Home", snapshot.Text(items[0]))
	assert.Equal(t, "Home", snapshot.OwnText(items[0]))
	assert.Equal(t, "Reports", snapshot.TextExcluding(items[1], func(n *html.Node) bool {
		return snapshot.Tag(n) == "i"
	}))
}

func TestClassHelpers(t *testing.T) {
	doc := parse(t)
	li := snapshot.QueryOne(doc, "//li[1]")
	require.NotNil(t, li)
	assert.True(t, snapshot.HasClass(li, "active"))
	assert.False(t, snapshot.HasClass(li, "act"))
	assert.True(t, snapshot.ClassContains(li, "act"))
	assert.False(t, snapshot.ClassContains(li, ""))
}

func TestQueryInvalidExpression(t *testing.T) {
	doc := parse(t)
	nodes, err := snapshot.Query(doc, "//li[")
	assert.Error(t, err)
	assert.Empty(t, nodes)
	assert.Nil(t, snapshot.QueryOne(doc, "//li["))
}

func TestPositionalXPathResolvesBack(t *testing.T) {
	doc := parse(t)
	for _, expr := range []string{"//p[2]", "//li[2]/span", "//ul"} {
		target := htmlquery.FindOne(doc, expr)
		require.NotNil(t, target, expr)
		path := snapshot.PositionalXPath(target)
		assert.Equal(t, target, htmlquery.FindOne(doc, path), path)
	}
	assert.Equal(t, "/html[1]/body[1]/div[1]/div[1]/p[2]", snapshot.PositionalXPath(htmlquery.FindOne(doc, "//p[2]")))
}

func TestLiteral(t *testing.T) {
	cases := map[string]string{
		`plain`:         `'plain'`,
		`it's`:          `"it's"`,
		`say "hi"`:      `'say "hi"'`,
		`it's "quoted"`: `concat('it', "'", 's "quoted"')`,
		`'both"`:        `concat("'", 'both"')`,
	}
	for in, want := range cases {
		assert.Equal(t, want, snapshot.Literal(in), in)
	}
}

func TestLiteralEvaluates(t *testing.T) {
	doc, err := snapshot.Parse(`<html><body><b>it's "x"</b><b>'a"</b></body></html>`)
	require.NoError(t, err)
	for _, text := range []string{`it's "x"`, `'a"`} {
		n := snapshot.QueryOne(doc, "//b[normalize-space(.)="+snapshot.Literal(text)+"]")
		require.NotNil(t, n, text)
		assert.Equal(t, text, snapshot.Text(n))
	}
}
