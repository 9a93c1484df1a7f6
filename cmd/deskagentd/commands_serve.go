package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the daemon's HTTP
// surface: task submission, resume/pause/cancel, confirmation resolution,
// the websocket event stream, and health/metrics endpoints.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deskagentd HTTP server",
		Long: `Start deskagentd with its full HTTP surface:

1. Load configuration from the specified file (or deskagent.yaml)
2. Open the task store and wire the LLM provider, concurrency manager,
   browser driver, and app-agent factory
3. Serve POST /tasks, /tasks/{id}/resume|pause|cancel|confirm
4. Serve GET /tasks/{id}, GET /events (websocket), GET /healthz, GET /metrics

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  deskagentd serve

  # Start with custom config
  deskagentd serve --config /etc/deskagent/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "deskagent.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
