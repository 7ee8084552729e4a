package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polzovatel/navshot/internal/config"
	"github.com/polzovatel/navshot/internal/locator"
	"github.com/polzovatel/navshot/internal/orchestrator"
	"github.com/polzovatel/navshot/internal/sequence"
)

type generateFlags struct {
	items []string
	all   bool
	out   string
}

func newGenerateCmd(a *app) *cobra.Command {
	var gf generateFlags
	cmd := &cobra.Command{
		Use:   "generate [url]",
		Short: "Build action sequences for selected menu items",
		Long: "Build action sequences for the selected menu items. Without --item or --all\n" +
			"the discovered items are listed and read as numbers from standard input.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd, generateKeys)
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
			return writeSequences(cmd.OutOrStdout(), gf.out, a.format, seqs)
		},
	}
	addGenerateFlags(cmd, &gf)
	return cmd
}

var generateKeys = map[string]string{
	"toolbar":  "generate.include_toolbar_buttons",
	"wait-ms":  "generate.wait_ms",
	"strategy": "generate.strategy",
}

func addGenerateFlags(cmd *cobra.Command, gf *generateFlags) {
	f := cmd.Flags()
	f.StringArrayVarP(&gf.items, "item", "i", nil, "menu item identifier to explore (repeatable)")
	f.BoolVar(&gf.all, "all", false, "explore every discovered menu item")
	f.StringVar(&gf.out, "out", "", "write sequences to this file (.json or .yaml)")
	f.Bool("toolbar", false, "also build one sequence per toolbar control")
	f.Int("wait-ms", 2000, "wait appended after every click, in milliseconds")
	f.String("strategy", "text", "selector strategy: text or label")
}

// generate resolves the item selection and builds its sequences.
func (a *app) generate(ctx context.Context, cmd *cobra.Command, s *session, cfg *config.Config, url string, gf generateFlags) ([]sequence.Sequence, error) {
	ids := gf.items
	if len(ids) == 0 {
		items, err := s.orch.Discover(ctx, url)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("no menu items found at %s", url)
		}
		if gf.all {
			ids = identifiers(items)
		} else {
			ids, err = promptItems(cmd.InOrStdin(), cmd.ErrOrStderr(), items)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				return nil, fmt.Errorf("no items selected")
			}
		}
	}
	return s.orch.Generate(ctx, url, ids, orchestrator.GenerateOptions{
		WaitMs:         cfg.Generate.WaitMs,
		IncludeToolbar: cfg.Generate.IncludeToolbarButtons,
	})
}

func identifiers(items []locator.MenuItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Identifier)
	}
	return out
}

// promptItems lists items and reads a selection such as "1 3" or "2,4" or
// "all". An empty line selects nothing.
func promptItems(in io.Reader, out io.Writer, items []locator.MenuItem) ([]string, error) {
	for i, it := range items {
		marker := ""
		if it.HasChildren {
			marker = " >"
		}
		fmt.Fprintf(out, "%3d. %s%s\n", i+1, it.Identifier, marker)
	}
	fmt.Fprint(out, "Select items (numbers, \"all\", empty to cancel): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	return parseSelection(line, items)
}

func parseSelection(line string, items []locator.MenuItem) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.EqualFold(line, "all") {
		return identifiers(items), nil
	}
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	seen := make(map[int]bool, len(fields))
	var ids []string
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(items) {
			return nil, fmt.Errorf("invalid selection %q: expected 1..%d", f, len(items))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		ids = append(ids, items[n-1].Identifier)
	}
	return ids, nil
}

// writeSequences saves to path, or encodes to w in the requested format.
func writeSequences(w io.Writer, path, format string, seqs []sequence.Sequence) error {
	if path != "" {
		if err := sequence.Save(path, seqs); err != nil {
			return fmt.Errorf("save sequences: %w", err)
		}
		fmt.Fprintf(w, "%d sequences written to %s\n", len(seqs), path)
		return nil
	}
	f := sequence.FormatJSON
	if strings.HasPrefix(strings.ToLower(format), "y") {
		f = sequence.FormatYAML
	}
	return sequence.Encode(w, f, seqs)
}
