package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/navshot/internal/capture"
	"github.com/polzovatel/navshot/internal/locator"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "JSON": FormatJSON, "yml": FormatYAML, "table": FormatText} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestMenuItems(t *testing.T) {
	items := []locator.MenuItem{
		{Identifier: "Home"},
		{Identifier: "Reports", HasChildren: true, Label: "Reports menu"},
	}

	var text bytes.Buffer
	require.NoError(t, MenuItems(&text, FormatText, items))
	assert.Contains(t, text.String(), "ITEM")
	assert.Contains(t, text.String(), "Reports")
	assert.Contains(t, text.String(), "yes")

	var js bytes.Buffer
	require.NoError(t, MenuItems(&js, FormatJSON, items))
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Reports", decoded[1]["identifier"])
	assert.Equal(t, true, decoded[1]["hasChildren"])

	var yml bytes.Buffer
	require.NoError(t, MenuItems(&yml, FormatYAML, nil))
	assert.Equal(t, "[]\n", yml.String())
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "reports-daily-export-csv-disabled", Slug("Reports - Daily - Export CSV (disabled)"))
	assert.Equal(t, "отчеты-день", Slug("Отчеты / День"))
	assert.Equal(t, "page", Slug(""))
	assert.Equal(t, "page", Slug(" -- "))
}

func TestRunDir(t *testing.T) {
	root := t.TempDir()
	run, err := NewRunDir(root, "run-1", "https://erp.example")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run-1"), run.Dir())

	entry, err := run.Write(0, &capture.Result{Sequence: "Reports - Daily", Image: []byte("img"), Thumbnail: []byte("th"), Width: 10, Height: 20})
	require.NoError(t, err)
	assert.Equal(t, "01-reports-daily.png", entry.Image)
	assert.Equal(t, "01-reports-daily-thumb.png", entry.Thumbnail)
	_, err = run.Write(1, &capture.Result{})
	require.NoError(t, err)
	require.NoError(t, run.Close())

	data, err := os.ReadFile(filepath.Join(root, "run-1", "01-reports-daily.png"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
	_, err = os.Stat(filepath.Join(root, "run-1", "02-page.png"))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(root, "run-1", ManifestName))
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "run-1", m.RunID)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, 20, m.Entries[0].Result.Height)
	assert.Nil(t, m.Entries[0].Result.Image, "image bytes stay out of the manifest")
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
