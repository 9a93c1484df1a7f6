package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// buildRunCmd creates the "run" command, a one-shot client that submits a
// task to an already-running "deskagentd serve" and prints the result.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
		hwnds      []int64
	)

	cmd := &cobra.Command{
		Use:   "run <task text>",
		Short: "Submit a task to a running deskagentd and wait for its result",
		Args:  cobra.ExactArgs(1),
		Example: `  deskagentd run "open a new tab and search for golang context package" --hwnd 12345
  deskagentd run "save the file and run the tests" --hwnd 1001 --hwnd 1002`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), configPath, serverAddr, args[0], hwnds)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "deskagent.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Base URL of a running deskagentd (overrides config-derived gateway address)")
	cmd.Flags().Int64SliceVar(&hwnds, "hwnd", nil, "Target window handle (repeatable)")

	return cmd
}

func runRun(ctx context.Context, configPath, serverAddr, text string, hwnds []int64) error {
	addr, err := resolveServerAddr(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(addr)

	var resp taskResponse
	if err := client.postJSON(ctx, "/tasks", createTaskRequest{Text: text, TargetHwnds: hwnds}, &resp); err != nil {
		return err
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
