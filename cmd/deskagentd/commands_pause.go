package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// buildPauseCmd creates the "pause" command, which requests that the
// currently running task checkpoint and stop at the next iteration boundary.
func buildPauseCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
	)

	cmd := &cobra.Command{
		Use:   "pause <task-id>",
		Short: "Pause the currently running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPause(cmd.Context(), configPath, serverAddr, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "deskagent.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Base URL of a running deskagentd")

	return cmd
}

func runPause(ctx context.Context, configPath, serverAddr, taskID string) error {
	addr, err := resolveServerAddr(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(addr)
	if err := client.postJSON(ctx, "/tasks/"+taskID+"/pause", nil, nil); err != nil {
		return err
	}
	fmt.Printf("task %s: pause requested\n", taskID)
	return nil
}
