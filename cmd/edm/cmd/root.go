// Package cmd provides the CLI commands for edm.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/edm/internal/config"
	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/logging"
	"github.com/Aman-CERP/edm/internal/profiling"
	"github.com/Aman-CERP/edm/pkg/version"
)

// skipConfigAnnotation marks commands that must work without a valid
// configuration.
const skipConfigAnnotation = "edm/skip-config"

// rootOptions is shared by every subcommand of one root command.
type rootOptions struct {
	debug   bool
	dataDir string
	profile profiling.Options

	cfg            *config.Config
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the edm CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "edm",
		Short: "Crawl file trees into a searchable document index",
		Long: `edm crawls directories into a full-text document index and keeps it
in sync with the filesystem: files that disappeared since the previous
crawl of a source are removed from the index.

The index can be queried with search, suggest, facets and terms, or
served to AI clients over the Model Context Protocol with 'edm serve'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return opts.teardown()
		},
	}
	cmd.SetVersionTemplate("edm version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging (mirrored to stderr)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Directory holding the index and catalog (default ~/.edm)")
	cmd.PersistentFlags().StringVar(&opts.profile.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newCrawlCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newSuggestCmd(opts))
	cmd.AddCommand(newFacetsCmd(opts))
	cmd.AddCommand(newTermsCmd(opts))
	cmd.AddCommand(newSourcesCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads the configuration, installs logging and starts the
// requested profiles.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		return o.startProfiling()
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return err
	}
	if o.dataDir != "" {
		cfg.Index.DataDir = o.dataDir
	}
	o.cfg = cfg

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      logFilePath(cfg),
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: o.debug,
	}
	if o.debug {
		logCfg.Level = "debug"
	}

	var cleanup func()
	if cmd.Name() == "serve" {
		cleanup, err = logging.SetupServeMode(logCfg)
	} else {
		cleanup, err = logging.SetupDefault(logCfg)
	}
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup

	slog.Debug("config_loaded",
		slog.String("command", cmd.CommandPath()),
		slog.String("data_dir", cfg.Index.DataDir),
		slog.String("index", cfg.IndexPath()))
	return o.startProfiling()
}

func (o *rootOptions) startProfiling() error {
	if !o.profile.Enabled() {
		return nil
	}
	p, err := profiling.Start(o.profile)
	if err != nil {
		return err
	}
	o.profiler = p
	return nil
}

// logFilePath is logging.file_path, or <data_dir>/logs/edm.log.
func logFilePath(cfg *config.Config) string {
	if cfg.Logging.FilePath != "" {
		return cfg.Logging.FilePath
	}
	return filepath.Join(cfg.Index.DataDir, "logs", "edm.log")
}

func (o *rootOptions) teardown() error {
	err := o.profiler.Stop()
	o.profiler = nil
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints a failure to stderr, as JSON
// when the failed command was asked for JSON output.
func Execute() error {
	cmd, err := NewRootCmd().ExecuteC()
	if err != nil {
		printError(os.Stderr, err, jsonRequested(cmd))
	}
	return err
}

func jsonRequested(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	f := cmd.Flags().Lookup("json")
	return f != nil && f.Value.String() == "true"
}

func printError(w io.Writer, err error, asJSON bool) {
	if asJSON {
		if data, jerr := edmerrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	if _, ok := edmerrors.As(err); ok {
		_, _ = fmt.Fprint(w, edmerrors.FormatForCLI(err))
		return
	}
	if errors.Is(err, errInterrupted) {
		_, _ = fmt.Fprintln(w, "Interrupted.")
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
