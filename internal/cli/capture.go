package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/polzovatel/navshot/internal/capture"
	"github.com/polzovatel/navshot/internal/config"
	"github.com/polzovatel/navshot/internal/orchestrator"
	"github.com/polzovatel/navshot/internal/output"
	"github.com/polzovatel/navshot/internal/sequence"
)

type captureFlags struct {
	sequences string
	fullPage  bool
	runID     string
}

var captureKeys = map[string]string{
	"preset":       "capture.preset",
	"wait-seconds": "capture.wait_seconds",
	"out-dir":      "capture.output_dir",
}

func newCaptureCmd(a *app) *cobra.Command {
	var cf captureFlags
	cmd := &cobra.Command{
		Use:   "capture [url]",
		Short: "Replay sequences and capture one screenshot per sequence",
		Long: "Replay every sequence of --sequences against the page and store one screenshot\n" +
			"per sequence under <out-dir>/<run-id>. Without --sequences the page is captured as loaded.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd, captureKeys)
			if err != nil {
				return err
			}
			url, err := targetURL(args, cfg)
			if err != nil {
				return err
			}
			var seqs []sequence.Sequence
			if cf.sequences != "" {
				if seqs, err = sequence.Load(cf.sequences); err != nil {
					return err
				}
			}
			s, err := a.open(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.close()
			return a.capture(cmd.Context(), cmd.OutOrStdout(), s, cfg, url, seqs, cf)
		},
	}
	cmd.Flags().StringVarP(&cf.sequences, "sequences", "s", "", "sequence file produced by generate")
	addCaptureFlags(cmd, &cf)
	return cmd
}

func addCaptureFlags(cmd *cobra.Command, cf *captureFlags) {
	f := cmd.Flags()
	f.BoolVar(&cf.fullPage, "full-page", false, "capture the full scroll height")
	f.StringVar(&cf.runID, "run-id", "", "run identifier (default: random UUID)")
	f.String("preset", capture.DefaultPreset, "viewport preset: desktop, laptop, tablet, mobile or fullPage")
	f.Int("wait-seconds", 5, "render wait before a capture, in seconds")
	f.String("out-dir", "screenshots", "root directory for run artifacts")
}

// capture runs the capture loop, storing artifacts as they are taken.
func (a *app) capture(ctx context.Context, w io.Writer, s *session, cfg *config.Config, url string, seqs []sequence.Sequence, cf captureFlags) error {
	run, err := output.NewRunDir(cfg.Capture.OutputDir, cf.runID, url)
	if err != nil {
		return err
	}
	logger := a.logger.With().Str("run", run.Manifest().RunID).Logger()
	logger.Info().Str("dir", run.Dir()).Int("sequences", len(seqs)).Msg("capture started")

	results, runErr := s.orch.CaptureAll(ctx, url, seqs, orchestrator.CaptureOptions{
		Preset:   cfg.Capture.Preset,
		FullPage: cf.fullPage,
		RunID:    run.Manifest().RunID,
		OnResult: func(i int, res *capture.Result) error {
			entry, err := run.Write(i, res)
			if err != nil {
				return err
			}
			logger.Info().Str("image", entry.Image).Str("sequence", res.Sequence).Msg("screenshot stored")
			return nil
		},
	})
	if err := run.Close(); err != nil && runErr == nil {
		runErr = err
	}

	skipped := len(seqs) - len(results)
	if len(seqs) == 0 {
		skipped = 1 - len(results)
	}
	if runErr == nil {
		fmt.Fprintf(w, "%d screenshots in %s (%d skipped)\n", len(results), run.Dir(), skipped)
		return nil
	}
	fmt.Fprintf(w, "%d screenshots in %s before failure\n", len(results), run.Dir())
	if capture.IsTimeout(runErr) {
		return fmt.Errorf("%w (check the URL or raise capture.load_timeout)", runErr)
	}
	return runErr
}
