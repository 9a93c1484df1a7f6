package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// buildResumeCmd creates the "resume" command, which asks a running
// deskagentd to reload task-id's latest checkpoint and re-enter the loop.
func buildResumeCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
	)

	cmd := &cobra.Command{
		Use:   "resume <task-id>",
		Short: "Resume a paused or interrupted task from its latest checkpoint",
		Args:  cobra.ExactArgs(1),
		Example: `  deskagentd resume task-17`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd.Context(), configPath, serverAddr, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "deskagent.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Base URL of a running deskagentd")

	return cmd
}

func runResume(ctx context.Context, configPath, serverAddr, taskID string) error {
	addr, err := resolveServerAddr(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(addr)

	var resp taskResponse
	if err := client.postJSON(ctx, "/tasks/"+taskID+"/resume", nil, &resp); err != nil {
		return err
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
