package cli

import (
	"maps"

	"github.com/spf13/cobra"

	"github.com/polzovatel/navshot/internal/sequence"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		gf generateFlags
		cf captureFlags
	)
	cmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Generate sequences and capture them in one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := maps.Clone(generateKeys)
			maps.Copy(keys, captureKeys)
			cfg, err := a.config(cmd, keys)
			if err != nil {
				return err
			}
			url, err := targetURL(args, cfg)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.close()

			seqs, err := a.generate(cmd.Context(), cmd, s, cfg, url, gf)
			if err != nil {
				return err
			}
			if gf.out != "" {
				if err := sequence.Save(gf.out, seqs); err != nil {
					return err
				}
			}
			return a.capture(cmd.Context(), cmd.OutOrStdout(), s, cfg, url, seqs, cf)
		},
	}
	addGenerateFlags(cmd, &gf)
	addCaptureFlags(cmd, &cf)
	return cmd
}
