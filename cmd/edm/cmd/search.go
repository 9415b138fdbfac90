package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/edm/internal/config"
	"github.com/Aman-CERP/edm/internal/search"
	"github.com/Aman-CERP/edm/internal/ui"
)

// outputOptions are shared by the read-only query commands.
type outputOptions struct {
	json    bool
	noColor bool
}

func (o *outputOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&o.noColor, "no-color", false, "Disable colors")
}

func (o *outputOptions) printer(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout(), o.noColor, o.json)
}

// withEngine opens the stores read-side and hands fn a search engine.
func withEngine(cfg *config.Config, fn func(*stores, *search.Engine) error) error {
	st, err := openStores(cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			slog.Warn("stores_close_failed", slog.String("error", cerr.Error()))
		}
	}()

	engine, err := newEngine(cfg, st)
	if err != nil {
		return err
	}
	return fn(st, engine)
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		out    outputOptions
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Search indexed documents",
		Long: `Search document names, paths, descriptions and content.

Every term must match. Use "quoted phrases" for exact sequences, a leading
'-' to exclude a term and a trailing '*' for prefix matches. An empty
pattern lists all documents.`,
		Example: `  edm search budget 2019
  edm search '"annual report" -draft'
  edm search 'invoic*' --limit 5 --json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if offset < 0 {
				return fmt.Errorf("--offset must not be negative")
			}
			pattern := strings.Join(args, " ")
			return withEngine(root.cfg, func(_ *stores, engine *search.Engine) error {
				res, err := engine.SearchWithOptions(ctx, pattern, search.SearchOptions{Limit: limit, Offset: offset})
				if err != nil {
					return interrupted(ctx, err)
				}
				return out.printer(cmd).PrintResults(res)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default: search.max_results)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many ranked results")
	out.bind(cmd)
	return cmd
}

func newSuggestCmd(root *rootOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Suggest documents for a partial query",
		Long: `Suggest documents while typing: any term may match, and every term
also matches as a prefix.`,
		Example: `  edm suggest bud
  edm suggest "annual rep"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			prefix := strings.Join(args, " ")
			return withEngine(root.cfg, func(_ *stores, engine *search.Engine) error {
				docs, err := engine.Suggest(ctx, prefix)
				if err != nil {
					return interrupted(ctx, err)
				}
				return out.printer(cmd).PrintSuggestions(docs)
			})
		},
	}

	out.bind(cmd)
	return cmd
}
