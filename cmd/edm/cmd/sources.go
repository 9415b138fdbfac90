package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/reconcile"
	"github.com/Aman-CERP/edm/internal/store"
)

func newSourcesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List or remove crawled sources",
	}

	cmd.AddCommand(newSourcesListCmd(root))
	cmd.AddCommand(newSourcesRmCmd(root))
	return cmd
}

func newSourcesListCmd(root *rootOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sources with their document count and last crawl",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			st, err := openStores(root.cfg, false)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					slog.Warn("stores_close_failed", slog.String("error", cerr.Error()))
				}
			}()

			sources, err := st.catalog.ListSources(ctx)
			if err != nil {
				return err
			}
			counts := make(map[string]uint64, len(sources))
			for _, s := range sources {
				n, err := st.index.Count(ctx, s.ID)
				if err != nil {
					slog.Warn("source_count_failed",
						slog.String("source", s.Name),
						slog.String("error", err.Error()))
					continue
				}
				counts[s.ID] = n
			}
			return out.printer(cmd).PrintSources(sources, counts)
		},
	}

	out.bind(cmd)
	return cmd
}

func newSourcesRmCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <source>",
		Short: "Remove a source and all of its documents",
		Long: `Remove every indexed document of a source, then the source itself.

Fails while a synchronized crawl of the source is running.`,
		Example: `  edm sources rm finance`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			name := args[0]
			st, err := openStores(root.cfg, false)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					slog.Warn("stores_close_failed", slog.String("error", cerr.Error()))
				}
			}()

			if _, err := st.catalog.FindSource(ctx, name); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return edmerrors.New(edmerrors.ErrCodeSourceNotFound,
						fmt.Sprintf("source %q not found", name), err).
						WithSuggestion("run 'edm sources list' to see crawled sources")
				}
				return err
			}

			// A session with nothing visited sweeps every document of the source.
			syncer := reconcile.New(st.index, st.catalog, reconcile.Options{
				PageSize: root.cfg.Sync.PageSize,
				LockDir:  root.cfg.LockDir(),
			})
			if _, err := syncer.Begin(ctx, name); err != nil {
				return err
			}
			sweep, err := syncer.End(ctx, name)
			if err != nil {
				return err
			}
			if sweep.Failed > 0 {
				return edmerrors.New(edmerrors.ErrCodeIndexFailed,
					fmt.Sprintf("%d documents of source %q could not be deleted", sweep.Failed, name), nil).
					WithSuggestion("run the command again")
			}

			if err := st.catalog.DeleteSource(ctx, name); err != nil {
				return err
			}

			slog.Info("source_removed", slog.String("source", name), slog.Int("deleted", sweep.Deleted))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed source %q (%d documents)\n", name, sweep.Deleted)
			return nil
		},
	}
	return cmd
}
