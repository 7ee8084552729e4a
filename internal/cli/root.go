// Package cli wires the navshot commands: discover, generate, capture, run
// and login.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/polzovatel/navshot/internal/config"
	"github.com/polzovatel/navshot/internal/logging"
	"github.com/polzovatel/navshot/internal/output"
)

// Version is set at build time.
var Version = "dev"

type app struct {
	cfgFile  string
	envFile  string
	logLevel string
	format   string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	v      *viper.Viper
	logger zerolog.Logger
	closer io.Closer

	open opener
}

// NewRootCmd builds the command tree writing to the process streams.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, open: openBrowser})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "navshot",
		Short:         "Generate replayable navigation sequences for an embedded web app and capture screenshots",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./navshot.yaml)")
	pf.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded before the environment is read")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (overrides logger.level)")
	pf.StringVarP(&a.format, "output", "o", "text", "output format: text, json or yaml")
	pf.Bool("headless", true, "run Chromium headless")
	pf.String("frame", "", "target the first iframe whose URL contains this text")
	pf.String("storage-state", "", "playwright storage state file with a logged-in session")

	root.AddCommand(
		newDiscoverCmd(a),
		newGenerateCmd(a),
		newCaptureCmd(a),
		newRunCmd(a),
		newLoginCmd(a),
	)
	return root
}

// init loads the environment and config file and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadEnv(a.envFile); err != nil {
		return err
	}
	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}
	a.v = v
	if err := bind(v, cmd.Flags(), map[string]string{
		"headless":      "browser.headless",
		"frame":         "browser.frame_url_contains",
		"storage-state": "browser.storage_state",
		"log-level":     "logger.level",
	}); err != nil {
		return err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	a.logger, a.closer = logging.New(cfg.Logger, a.stderr)
	logging.Install(a.logger)
	return nil
}

// config decodes the configuration after the command bound its own flags.
func (a *app) config(cmd *cobra.Command, flags map[string]string) (*config.Config, error) {
	if a.v == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	if err := bind(a.v, cmd.Flags(), flags); err != nil {
		return nil, err
	}
	return config.FromViper(a.v)
}

func (a *app) outputFormat() (output.Format, error) {
	return output.ParseFormat(a.format)
}

// bind maps command flags onto config keys. Only flags the user set
// override file and environment values.
func bind(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// targetURL takes the URL argument or falls back to target.url.
func targetURL(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Target.URL != "" {
		return cfg.Target.URL, nil
	}
	return "", fmt.Errorf("no target URL: pass one as argument or set target.url")
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
