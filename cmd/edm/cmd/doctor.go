package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/edm/internal/config"
	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/preflight"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that edm can crawl on this machine",
		Long: `Run the preflight checks crawls run once a day:

  - data directory is writable
  - free disk space (100 MB minimum, 1 GB recommended)
  - open file limit (256 minimum)
  - index and catalog presence

Exits non-zero when a required check fails.`,
		Example: `  edm doctor
  edm doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()))
			results := checker.RunAll(ctx, preflightTarget(root.cfg))

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					Status string                  `json:"status"`
					Checks []preflight.CheckResult `json:"checks"`
				}{checker.SummaryStatus(results), results}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
				if age := preflight.MarkerAge(root.cfg.Index.DataDir); age > 0 {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Last passed check: %s ago\n", age.Round(1e9))
				}
			}

			if checker.HasCriticalFailures(results) {
				return edmerrors.New(edmerrors.ErrCodeFilePermission, "system check failed: "+checker.Failures(results), nil)
			}
			return preflight.MarkPassed(root.cfg.Index.DataDir)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details of passing checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func preflightTarget(cfg *config.Config) preflight.Target {
	return preflight.Target{
		DataDir:     cfg.Index.DataDir,
		IndexPath:   cfg.IndexPath(),
		CatalogPath: cfg.CatalogPath(),
		Workers:     cfg.Crawl.Workers,
	}
}

// runPreflight runs the checks silently when the marker expired and fails
// on a critical result.
func runPreflight(ctx context.Context, cfg *config.Config) error {
	dataDir := cfg.Index.DataDir
	if !preflight.NeedsCheck(dataDir) {
		return nil
	}

	checker := preflight.New(preflight.WithOutput(io.Discard))
	results := checker.RunAll(ctx, preflight.Target{DataDir: dataDir, Workers: cfg.Crawl.Workers})
	for _, r := range results {
		slog.Info("preflight_check",
			slog.String("check", r.Name),
			slog.String("status", r.Status.String()),
			slog.String("message", r.Message))
	}

	if checker.HasCriticalFailures(results) {
		return edmerrors.New(edmerrors.ErrCodeFilePermission,
			"preflight check failed: "+checker.Failures(results), nil).
			WithSuggestion("run 'edm doctor' for details")
	}
	if err := preflight.MarkPassed(dataDir); err != nil {
		slog.Debug("preflight_marker_failed", slog.String("error", err.Error()))
	}
	return nil
}
