package cli

import (
	"github.com/spf13/cobra"

	"github.com/polzovatel/navshot/internal/output"
)

func newDiscoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [url]",
		Short: "List the navigable top-level menu items",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd, nil)
			if err != nil {
				return err
			}
			url, err := targetURL(args, cfg)
			if err != nil {
				return err
			}
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.close()

			items, err := s.orch.Discover(cmd.Context(), url)
			if err != nil {
				return err
			}
			return output.MenuItems(cmd.OutOrStdout(), format, items)
		},
	}
}
