package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/edm/internal/mcp"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to AI clients over MCP",
		Long: `Start a Model Context Protocol server exposing the search, suggest,
facets and top_terms tools, the edm://sources resource and one
edm://documents/{id} resource per indexed document.

Stdout carries the protocol; logs go to the log file only.`,
		Example: `  # Claude Desktop / MCP client configuration
  {"command": "edm", "args": ["serve"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// Nothing may be written to stdout before the server runs.
			st, err := openStores(root.cfg, false)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					slog.Warn("stores_close_failed", slog.String("error", cerr.Error()))
				}
			}()

			engine, err := newEngine(root.cfg, st)
			if err != nil {
				return err
			}
			srv, err := mcp.NewServer(engine,
				mcp.WithCatalog(st.catalog),
				mcp.WithDocuments(st.index),
				mcp.WithLogger(slog.Default()))
			if err != nil {
				return err
			}

			slog.Info("mcp_server_starting",
				slog.String("transport", transport),
				slog.String("index", root.cfg.IndexPath()))
			return srv.Serve(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport (stdio)")
	return cmd
}
