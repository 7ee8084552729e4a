package cli

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "login [url]",
		Short: "Open a visible browser, log in by hand and save the session",
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
			if save == "" {
				save = cfg.Browser.StorageState
			}
			if save == "" {
				return fmt.Errorf("no state file: pass --save or set browser.storage_state")
			}
			cfg.Browser.Headless = false

			s, err := a.open(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.close()
			saver, ok := s.page.(stateSaver)
			if !ok {
				return fmt.Errorf("page cannot save its storage state")
			}
			if err := s.page.Navigate(cmd.Context(), url); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Log in within the browser window, then press Enter here.\n> ")
			if _, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n'); err != nil && err != io.EOF {
				return fmt.Errorf("read confirmation: %w", err)
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if err := saver.SaveState(cmd.Context(), save); err != nil {
				return fmt.Errorf("save state: %w", err)
			}
			a.logger.Info().Str("path", save).Msg("storage saved")
			fmt.Fprintf(cmd.OutOrStdout(), "session saved to %s\n", save)
			return nil
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "state file to write (default browser.storage_state)")
	return cmd
}
