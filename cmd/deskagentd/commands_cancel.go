package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// buildCancelCmd creates the "cancel" command, which requests that the
// currently running task stop at the next iteration boundary without a
// checkpoint.
func buildCancelCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
	)

	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel the currently running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(cmd.Context(), configPath, serverAddr, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "deskagent.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Base URL of a running deskagentd")

	return cmd
}

func runCancel(ctx context.Context, configPath, serverAddr, taskID string) error {
	addr, err := resolveServerAddr(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(addr)
	if err := client.postJSON(ctx, "/tasks/"+taskID+"/cancel", nil, nil); err != nil {
		return err
	}
	fmt.Printf("task %s: cancel requested\n", taskID)
	return nil
}
