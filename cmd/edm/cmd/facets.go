package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/edm/internal/search"
)

func newFacetsCmd(root *rootOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "facets [pattern]",
		Short: "Count matching documents by extension, date and category",
		Long: `Count the documents matching a pattern by file extension, by file date
(last month, 2 months, 6 months, last year, until now) and by category.
Without a pattern all documents are counted.

A facet that cannot be computed is reported empty.`,
		Example: `  edm facets
  edm facets budget --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pattern := strings.Join(args, " ")
			return withEngine(root.cfg, func(_ *stores, engine *search.Engine) error {
				return out.printer(cmd).PrintFacets(engine.Aggregations(ctx, pattern))
			})
		},
	}

	out.bind(cmd)
	return cmd
}

func newTermsCmd(root *rootOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "terms [pattern]",
		Short: "Show the most frequent path terms of matching documents",
		Long: `Show the most frequent terms in the paths of the documents matching a
pattern. File extensions and terms matching
search.top_terms_exclusion_regex are left out.`,
		Example: `  edm terms
  edm terms invoice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pattern := strings.Join(args, " ")
			return withEngine(root.cfg, func(_ *stores, engine *search.Engine) error {
				return out.printer(cmd).PrintTerms(engine.TopTerms(ctx, pattern))
			})
		},
	}

	out.bind(cmd)
	return cmd
}
