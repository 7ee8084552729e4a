package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/navshot/internal/locator"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "desktop", cfg.Capture.Preset)
	assert.Equal(t, 5, cfg.Capture.WaitSeconds)
	assert.Equal(t, 30*time.Second, cfg.Capture.LoadTimeout)
	assert.Equal(t, 2000, cfg.Generate.WaitMs)
	assert.False(t, cfg.Generate.IncludeToolbarButtons)
	assert.Equal(t, 300*time.Millisecond, cfg.Generate.SubmenuInterval)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "app", cfg.Target.URLMarker)
	assert.Equal(t, locator.DefaultProfile(), cfg.Locator)
	assert.NotEmpty(t, cfg.Capture.Signatures)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "navshot.yaml", `
target:
  url: https://erp.example/#/app/acme/home
generate:
  include_toolbar_buttons: true
  strategy: label
capture:
  preset: fullPage
  wait_seconds: 8
browser:
  frame_url_contains: erp.example
locator:
  submenu_indicator: ".//svg[@data-icon='caret']"
toolbar:
  icon_names:
    archive: Archive
`)
	t.Setenv("NAVSHOT_CAPTURE_WAIT_SECONDS", "3")
	t.Setenv("NAVSHOT_BROWSER_HEADLESS", "false")

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "https://erp.example/#/app/acme/home", cfg.Target.URL)
	assert.True(t, cfg.Generate.IncludeToolbarButtons)
	assert.Equal(t, "fullPage", cfg.Capture.Preset)
	assert.Equal(t, 3, cfg.Capture.WaitSeconds, "environment wins over the file")
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, ".//svg[@data-icon='caret']", cfg.Locator.SubmenuIndicator)
	assert.Equal(t, locator.DefaultProfile().MenuItemSelectors, cfg.Locator.MenuItemSelectors, "unset profile keys keep defaults")
	assert.Equal(t, "Archive", cfg.Toolbar.IconNames["archive"])
	assert.Equal(t, "Add", cfg.Toolbar.IconNames["add"])

	bopts := cfg.BuilderOptions()
	assert.Equal(t, "label", bopts.Strategy.Name())
	assert.Equal(t, 10, bopts.SubmenuPolicy.Attempts)

	brOpts := cfg.BrowserOptions()
	assert.Equal(t, "erp.example", brOpts.FrameURLContains)
	assert.Equal(t, 1920, brOpts.Viewport.Width)
	assert.True(t, brOpts.HeadlessSet)

	assert.Equal(t, 3, cfg.CaptureOptions().WaitSeconds)
}

func TestNewMissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestNewWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v, err := New("")
	require.NoError(t, err)
	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "desktop", cfg.Capture.Preset)
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		msg    string
	}{
		"preset":    {func(c *Config) { c.Capture.Preset = "watch" }, "capture.preset"},
		"wait":      {func(c *Config) { c.Capture.WaitSeconds = -1 }, "capture.wait_seconds"},
		"wait ms":   {func(c *Config) { c.Generate.WaitMs = 0 }, "generate.wait_ms"},
		"strategy":  {func(c *Config) { c.Generate.Strategy = "css" }, "generate.strategy"},
		"level":     {func(c *Config) { c.Logger.Level = "loud" }, "logger.level"},
		"format":    {func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		"selectors": {func(c *Config) { c.Locator.MenuItemSelectors = nil }, "locator.menu_item_selectors"},
		"toolbar":   {func(c *Config) { c.Toolbar.ContainerPath = " " }, "toolbar.container_path"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	const key = "NAVSHOT_TEST_ENVFILE_VALUE"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
	path := writeFile(t, ".env", key+"=from-dotenv\n")

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv(key))

	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
