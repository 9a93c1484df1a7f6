package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// buildStatusCmd creates the "status" command: with a task id it reports
// that task's stored status, otherwise it pings /healthz.
func buildStatusCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
	)

	cmd := &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show deskagentd health, or a single task's status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var taskID string
			if len(args) == 1 {
				taskID = args[0]
			}
			return runStatus(cmd.Context(), configPath, serverAddr, taskID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "deskagent.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Base URL of a running deskagentd")

	return cmd
}

func runStatus(ctx context.Context, configPath, serverAddr, taskID string) error {
	addr, err := resolveServerAddr(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(addr)

	path := "/healthz"
	if taskID != "" {
		path = "/tasks/" + taskID
	}

	var resp map[string]any
	if err := client.getJSON(ctx, path, &resp); err != nil {
		return err
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
