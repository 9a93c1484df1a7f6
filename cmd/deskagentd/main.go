// Package main provides the CLI entry point for deskagentd, the desktop
// automation agent daemon.
//
// deskagentd drives one or more HostAgent supervisors, each running the
// hierarchical tool-calling loop from SPEC_FULL.md §4.7 against whatever
// application windows it is attached to, with LLM completions from
// Anthropic, OpenAI, or Bedrock.
//
// # Basic Usage
//
// Start the daemon:
//
//	deskagentd serve --config deskagent.yaml
//
// Submit a task to a running daemon:
//
//	deskagentd run "open a new tab and search for golang context package" --hwnd 12345
//
// Resume, pause, or cancel an in-flight task:
//
//	deskagentd resume task-17
//	deskagentd pause task-17
//	deskagentd cancel task-17
//
// # Environment Variables
//
//   - DESKAGENT_DB_PATH: path to the SQLite task store
//   - DESKAGENT_LOG_LEVEL: minimum log level
//   - DESKAGENT_MAX_ITERATIONS: override max_iterations
//   - DESKAGENT_GATEWAY_PORT: HTTP/websocket port
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY: LLM provider credentials
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main so tests can exercise the command tree directly.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deskagentd",
		Short: "deskagentd - hierarchical desktop automation agent daemon",
		Long: `deskagentd supervises one or more desktop automation tasks, dispatching
LLM-directed tool calls to per-window application agents (browser, desktop,
IDE) until each task reaches a terminal outcome.

Supported LLM providers: Anthropic (Claude), OpenAI (GPT), AWS Bedrock`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildRunCmd(),
		buildResumeCmd(),
		buildPauseCmd(),
		buildCancelCmd(),
		buildStatusCmd(),
	)

	return rootCmd
}
