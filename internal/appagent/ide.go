package appagent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// NewIDEAgent builds an AppAgent exposing open_file/goto_line/
// run_terminal_command over an IDEDriver, per spec §4.5's IDEAppAgent tool
// set. run_terminal_command is marked is_sensitive so the host gates it
// behind user confirmation before dispatch.
func NewIDEAgent(hwnd int64, probe WindowProbe, driver IDEDriver, cfg Config, logger *slog.Logger) *AppAgent {
	a := New(hwnd, TypeIDE, probe, defaultTaskExecutor{}, cfg, logger)

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "open_file",
		Description: "Open a file in the editor.",
		Parameters: []coretypes.ToolParameter{
			{Name: "path", Type: coretypes.ParamString, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		path, _ := args["path"].(string)
		if path == "" {
			return "", fmt.Errorf("path is required")
		}
		if err := driver.OpenFile(ctx, hwnd, path); err != nil {
			return "", err
		}
		return fmt.Sprintf("opened %s", path), nil
	})

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "goto_line",
		Description: "Move the editor cursor to a line number.",
		Parameters: []coretypes.ToolParameter{
			{Name: "line", Type: coretypes.ParamInteger, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		line, ok := asFloat(args["line"])
		if !ok {
			return "", fmt.Errorf("line is required")
		}
		if err := driver.GotoLine(ctx, hwnd, int(line)); err != nil {
			return "", err
		}
		return fmt.Sprintf("moved to line %d", int(line)), nil
	})

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "run_terminal_command",
		Description: "Run a shell command in the integrated terminal.",
		IsSensitive: true,
		Parameters: []coretypes.ToolParameter{
			{Name: "command", Type: coretypes.ParamString, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		command, _ := args["command"].(string)
		if command == "" {
			return "", fmt.Errorf("command is required")
		}
		return driver.RunTerminalCommand(ctx, hwnd, command)
	})

	return a
}
