package appagent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// NewDesktopAgent builds an AppAgent exposing mouse_click/keyboard_type/
// hotkey/window_focus over an InputDriver, per spec §4.5's DesktopAppAgent
// tool set. This is also the AgentFactory's fallback class for any window
// that doesn't classify as browser/ide.
func NewDesktopAgent(hwnd int64, probe WindowProbe, driver InputDriver, cfg Config, logger *slog.Logger) *AppAgent {
	a := New(hwnd, TypeDesktop, probe, defaultTaskExecutor{}, cfg, logger)

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "mouse_click",
		Description: "Click the mouse at pixel coordinates within the window.",
		Parameters: []coretypes.ToolParameter{
			{Name: "x", Type: coretypes.ParamInteger, Required: true},
			{Name: "y", Type: coretypes.ParamInteger, Required: true},
			{Name: "button", Type: coretypes.ParamString, Required: false, Enum: []string{"left", "right", "middle"}, Default: "left"},
			{Name: "clicks", Type: coretypes.ParamInteger, Required: false, Default: 1},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		x, y, err := xyArgs(args)
		if err != nil {
			return "", err
		}
		button, _ := args["button"].(string)
		if button == "" {
			button = "left"
		}
		clicks := 1
		if v, ok := asFloat(args["clicks"]); ok {
			clicks = int(v)
		}
		if err := driver.MouseClick(ctx, hwnd, x, y, button, clicks); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s-clicked (%d, %d) x%d", button, x, y, clicks), nil
	})

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "keyboard_type",
		Description: "Type text via keyboard input into the focused window.",
		Parameters: []coretypes.ToolParameter{
			{Name: "text", Type: coretypes.ParamString, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		text, _ := args["text"].(string)
		if err := driver.KeyboardType(ctx, hwnd, text); err != nil {
			return "", err
		}
		return "typed text", nil
	})

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "hotkey",
		Description: `Send a key combination, e.g. "ctrl+c".`,
		Parameters: []coretypes.ToolParameter{
			{Name: "keys", Type: coretypes.ParamString, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		keys, _ := args["keys"].(string)
		if keys == "" {
			return "", fmt.Errorf("keys is required")
		}
		if err := driver.Hotkey(ctx, hwnd, keys); err != nil {
			return "", err
		}
		return fmt.Sprintf("sent hotkey %s", keys), nil
	})

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "window_focus",
		Description: "Bring the window to the foreground.",
		Parameters:  nil,
	}, func(ctx context.Context, args map[string]any) (string, error) {
		if err := driver.FocusWindow(ctx, hwnd); err != nil {
			return "", err
		}
		return "window focused", nil
	})

	return a
}
