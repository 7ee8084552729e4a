// Package config loads navshot settings from navshot.yaml, NAVSHOT_*
// environment variables and a .env file, in increasing order of
// precedence for the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/polzovatel/navshot/internal/browser"
	"github.com/polzovatel/navshot/internal/builder"
	"github.com/polzovatel/navshot/internal/capture"
	"github.com/polzovatel/navshot/internal/locator"
	"github.com/polzovatel/navshot/internal/orchestrator"
	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/toolbar"
)

const (
	EnvPrefix      = "NAVSHOT"
	DefaultName    = "navshot"
	DefaultEnvFile = ".env"
)

type Config struct {
	Target   TargetConfig    `mapstructure:"target" yaml:"target"`
	Generate GenerateConfig  `mapstructure:"generate" yaml:"generate"`
	Capture  CaptureConfig   `mapstructure:"capture" yaml:"capture"`
	Browser  BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Logger   LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Locator  locator.Profile `mapstructure:"locator" yaml:"locator"`
	Toolbar  toolbar.Profile `mapstructure:"toolbar" yaml:"toolbar"`
}

type TargetConfig struct {
	URL       string `mapstructure:"url" yaml:"url"`
	URLMarker string `mapstructure:"url_marker" yaml:"url_marker"`
}

type GenerateConfig struct {
	WaitMs                int           `mapstructure:"wait_ms" yaml:"wait_ms"`
	IncludeToolbarButtons bool          `mapstructure:"include_toolbar_buttons" yaml:"include_toolbar_buttons"`
	Strategy              string        `mapstructure:"strategy" yaml:"strategy"`
	ControlWaitMs         int           `mapstructure:"control_wait_ms" yaml:"control_wait_ms"`
	SubmenuAttempts       int           `mapstructure:"submenu_attempts" yaml:"submenu_attempts"`
	SubmenuInterval       time.Duration `mapstructure:"submenu_interval" yaml:"submenu_interval"`
	ToolbarAttempts       int           `mapstructure:"toolbar_attempts" yaml:"toolbar_attempts"`
	ToolbarInterval       time.Duration `mapstructure:"toolbar_interval" yaml:"toolbar_interval"`
	MenuAttempts          int           `mapstructure:"menu_attempts" yaml:"menu_attempts"`
	MenuInterval          time.Duration `mapstructure:"menu_interval" yaml:"menu_interval"`
}

type CaptureConfig struct {
	Preset           string        `mapstructure:"preset" yaml:"preset"`
	WaitSeconds      int           `mapstructure:"wait_seconds" yaml:"wait_seconds"`
	GraceTicks       int           `mapstructure:"grace_ticks" yaml:"grace_ticks"`
	LoadTimeout      time.Duration `mapstructure:"load_timeout" yaml:"load_timeout"`
	OutputDir        string        `mapstructure:"output_dir" yaml:"output_dir"`
	OverlayHeight    int           `mapstructure:"overlay_height" yaml:"overlay_height"`
	ThumbnailWidth   int           `mapstructure:"thumbnail_width" yaml:"thumbnail_width"`
	BannerXPaths     []string      `mapstructure:"banner_xpaths" yaml:"banner_xpaths"`
	BannerSignatures []string      `mapstructure:"banner_signatures" yaml:"banner_signatures"`
	Signatures       []string      `mapstructure:"signatures" yaml:"signatures"`
}

type BrowserConfig struct {
	Headless         bool          `mapstructure:"headless" yaml:"headless"`
	StorageState     string        `mapstructure:"storage_state" yaml:"storage_state"`
	FrameURLContains string        `mapstructure:"frame_url_contains" yaml:"frame_url_contains"`
	NavTimeout       time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	SettleTimeout    time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	ConsoleBuffer    int           `mapstructure:"console_buffer" yaml:"console_buffer"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// SetDefaults registers every scalar key, which also makes it bindable
// from the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target.url", "")
	v.SetDefault("target.url_marker", "app")

	v.SetDefault("generate.wait_ms", 2000)
	v.SetDefault("generate.include_toolbar_buttons", false)
	v.SetDefault("generate.strategy", "text")
	v.SetDefault("generate.control_wait_ms", builder.DefaultControlWaitMs)
	v.SetDefault("generate.submenu_attempts", 10)
	v.SetDefault("generate.submenu_interval", "300ms")
	v.SetDefault("generate.toolbar_attempts", 10)
	v.SetDefault("generate.toolbar_interval", "500ms")
	v.SetDefault("generate.menu_attempts", 10)
	v.SetDefault("generate.menu_interval", "500ms")

	capDef := capture.DefaultOptions()
	v.SetDefault("capture.preset", capture.DefaultPreset)
	v.SetDefault("capture.wait_seconds", capDef.WaitSeconds)
	v.SetDefault("capture.grace_ticks", capDef.GraceTicks)
	v.SetDefault("capture.load_timeout", capDef.LoadTimeout.String())
	v.SetDefault("capture.output_dir", "screenshots")
	v.SetDefault("capture.overlay_height", capDef.OverlayHeight)
	v.SetDefault("capture.thumbnail_width", capDef.ThumbnailWidth)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.storage_state", "")
	v.SetDefault("browser.frame_url_contains", "")
	v.SetDefault("browser.nav_timeout", "30s")
	v.SetDefault("browser.settle_timeout", "10s")
	v.SetDefault("browser.console_buffer", 512)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
}

// base carries the list and map defaults viper cannot express per key.
func base() Config {
	capDef := capture.DefaultOptions()
	return Config{
		Capture: CaptureConfig{
			BannerXPaths:     capDef.BannerXPaths,
			BannerSignatures: capDef.BannerSignatures,
			Signatures:       capDef.Signatures,
		},
		Locator: locator.DefaultProfile(),
		Toolbar: toolbar.DefaultProfile(),
	}
}

// NewDefaultConfig returns the configuration used with no file and no
// environment.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := base()
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// New prepares a viper instance: defaults, the config file (path, or
// ./navshot.yaml when empty) and NAVSHOT_* environment variables.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// LoadEnv loads envFile into the process environment without overriding
// variables already set. A missing file is not an error.
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if _, err := os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := base()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is LoadEnv, New and FromViper in one call.
func Load(path, envFile string) (*Config, error) {
	if err := LoadEnv(envFile); err != nil {
		return nil, err
	}
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, _, err := capture.LookupPreset(c.Capture.Preset); err != nil {
		return fmt.Errorf("capture.preset: %w", err)
	}
	if c.Capture.WaitSeconds < 0 {
		return fmt.Errorf("capture.wait_seconds must not be negative")
	}
	if c.Capture.GraceTicks < 0 {
		return fmt.Errorf("capture.grace_ticks must not be negative")
	}
	if c.Generate.WaitMs <= 0 {
		return fmt.Errorf("generate.wait_ms must be a positive integer")
	}
	if _, err := locator.StrategyByName(c.Generate.Strategy); err != nil {
		return fmt.Errorf("generate.strategy: %w", err)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logger.Level)); err != nil {
		return fmt.Errorf("logger.level: %w", err)
	}
	switch strings.ToLower(c.Logger.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if len(c.Locator.MenuItemSelectors) == 0 {
		return fmt.Errorf("locator.menu_item_selectors must not be empty")
	}
	if strings.TrimSpace(c.Toolbar.ContainerPath) == "" {
		return fmt.Errorf("toolbar.container_path must not be empty")
	}
	return nil
}

// BuilderOptions maps the generation settings.
func (c *Config) BuilderOptions() builder.Options {
	strategy, err := locator.StrategyByName(c.Generate.Strategy)
	if err != nil {
		strategy = locator.TextStrategy{}
	}
	return builder.Options{
		Locator:       c.Locator,
		Toolbar:       c.Toolbar,
		Strategy:      strategy,
		SubmenuPolicy: poll.Policy{Attempts: c.Generate.SubmenuAttempts, Interval: c.Generate.SubmenuInterval},
		ToolbarPolicy: poll.Policy{Attempts: c.Generate.ToolbarAttempts, Interval: c.Generate.ToolbarInterval},
		ControlWaitMs: c.Generate.ControlWaitMs,
		SettleTimeout: c.Browser.SettleTimeout,
		URLMarker:     c.Target.URLMarker,
	}
}

// OrchestratorConfig maps the discovery settings.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Locator:       c.Locator,
		MenuPolicy:    poll.Policy{Attempts: c.Generate.MenuAttempts, Interval: c.Generate.MenuInterval},
		SettleTimeout: c.Browser.SettleTimeout,
	}
}

// CaptureOptions maps the capture settings.
func (c *Config) CaptureOptions() capture.Options {
	opts := capture.DefaultOptions()
	opts.WaitSeconds = c.Capture.WaitSeconds
	opts.GraceTicks = c.Capture.GraceTicks
	opts.LoadTimeout = c.Capture.LoadTimeout
	opts.OverlayHeight = c.Capture.OverlayHeight
	opts.ThumbnailWidth = c.Capture.ThumbnailWidth
	opts.BannerXPaths = c.Capture.BannerXPaths
	opts.BannerSignatures = c.Capture.BannerSignatures
	opts.Signatures = c.Capture.Signatures
	return opts
}

// BrowserOptions maps the browser settings. The viewport follows the
// configured preset.
func (c *Config) BrowserOptions() browser.Options {
	vp, _, _ := capture.LookupPreset(c.Capture.Preset)
	return browser.Options{
		Headless:         c.Browser.Headless,
		HeadlessSet:      true,
		StorageStatePath: c.Browser.StorageState,
		FrameURLContains: c.Browser.FrameURLContains,
		NavTimeout:       c.Browser.NavTimeout,
		Viewport:         vp,
		ConsoleBuffer:    c.Browser.ConsoleBuffer,
	}
}
