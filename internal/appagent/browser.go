package appagent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// NewBrowserAgent builds an AppAgent exposing navigate/click/type_text/scroll
// over a BrowserDriver (chromedp by default, playwright-go as the
// config-selected alternative), per spec §4.5's BrowserAppAgent tool set.
func NewBrowserAgent(hwnd int64, probe WindowProbe, driver BrowserDriver, cfg Config, logger *slog.Logger) *AppAgent {
	a := New(hwnd, TypeBrowser, probe, defaultTaskExecutor{}, cfg, logger)

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "navigate",
		Description: "Navigate the browser window to a URL.",
		Parameters: []coretypes.ToolParameter{
			{Name: "url", Type: coretypes.ParamString, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		url, _ := args["url"].(string)
		if url == "" {
			return "", fmt.Errorf("url is required")
		}
		if err := driver.Navigate(ctx, hwnd, url); err != nil {
			return "", err
		}
		return fmt.Sprintf("navigated to %s", url), nil
	})

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "click",
		Description: "Click at pixel coordinates within the page.",
		Parameters: []coretypes.ToolParameter{
			{Name: "x", Type: coretypes.ParamInteger, Required: true},
			{Name: "y", Type: coretypes.ParamInteger, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		x, y, err := xyArgs(args)
		if err != nil {
			return "", err
		}
		if err := driver.Click(ctx, hwnd, x, y); err != nil {
			return "", err
		}
		return fmt.Sprintf("clicked (%d, %d)", x, y), nil
	})

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "type_text",
		Description: "Type text into the currently focused element.",
		Parameters: []coretypes.ToolParameter{
			{Name: "text", Type: coretypes.ParamString, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		text, _ := args["text"].(string)
		if err := driver.TypeText(ctx, hwnd, text); err != nil {
			return "", err
		}
		return "typed text", nil
	})

	a.RegisterTool(coretypes.ToolDefinition{
		Name:        "scroll",
		Description: "Scroll the page in a direction by a pixel amount.",
		Parameters: []coretypes.ToolParameter{
			{Name: "direction", Type: coretypes.ParamString, Required: true, Enum: []string{"up", "down", "left", "right"}},
			{Name: "amount", Type: coretypes.ParamInteger, Required: false, Default: 300},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		direction, _ := args["direction"].(string)
		amount := 300
		if v, ok := asFloat(args["amount"]); ok {
			amount = int(v)
		}
		if err := driver.Scroll(ctx, hwnd, direction, amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("scrolled %s by %d", direction, amount), nil
	})

	return a
}

func xyArgs(args map[string]any) (int, int, error) {
	xf, ok := asFloat(args["x"])
	if !ok {
		return 0, 0, fmt.Errorf("x is required")
	}
	yf, ok := asFloat(args["y"])
	if !ok {
		return 0, 0, fmt.Errorf("y is required")
	}
	return int(xf), int(yf), nil
}
