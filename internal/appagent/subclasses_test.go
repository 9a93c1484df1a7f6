package appagent

import (
	"context"
	"testing"
)

type fakeBrowserDriver struct {
	navigatedTo string
	clickedX    int
	clickedY    int
	typed       string
	scrolled    string
}

func (f *fakeBrowserDriver) Navigate(ctx context.Context, hwnd int64, url string) error {
	f.navigatedTo = url
	return nil
}
func (f *fakeBrowserDriver) Click(ctx context.Context, hwnd int64, x, y int) error {
	f.clickedX, f.clickedY = x, y
	return nil
}
func (f *fakeBrowserDriver) TypeText(ctx context.Context, hwnd int64, text string) error {
	f.typed = text
	return nil
}
func (f *fakeBrowserDriver) Scroll(ctx context.Context, hwnd int64, direction string, amount int) error {
	f.scrolled = direction
	return nil
}

func TestBrowserAgent_NavigateAndClick(t *testing.T) {
	driver := &fakeBrowserDriver{}
	a := NewBrowserAgent(1, fakeProbe{exists: true}, driver, Config{}, nil)

	res := a.CallTool(context.Background(), "navigate", map[string]any{"url": "https://example.com"})
	if res.IsError {
		t.Fatalf("navigate failed: %s", res.Error)
	}
	if driver.navigatedTo != "https://example.com" {
		t.Errorf("expected navigation to example.com, got %q", driver.navigatedTo)
	}

	res = a.CallTool(context.Background(), "click", map[string]any{"x": 10.0, "y": 20.0})
	if res.IsError {
		t.Fatalf("click failed: %s", res.Error)
	}
	if driver.clickedX != 10 || driver.clickedY != 20 {
		t.Errorf("expected click at (10,20), got (%d,%d)", driver.clickedX, driver.clickedY)
	}
}

func TestBrowserAgent_NavigateRequiresURL(t *testing.T) {
	a := NewBrowserAgent(1, fakeProbe{exists: true}, &fakeBrowserDriver{}, Config{}, nil)
	res := a.CallTool(context.Background(), "navigate", map[string]any{})
	if !res.IsError {
		t.Fatal("expected failure when url is missing")
	}
}

type fakeInputDriver struct {
	focused bool
	hotkey  string
}

func (f *fakeInputDriver) MouseClick(ctx context.Context, hwnd int64, x, y int, button string, clicks int) error {
	return nil
}
func (f *fakeInputDriver) KeyboardType(ctx context.Context, hwnd int64, text string) error { return nil }
func (f *fakeInputDriver) Hotkey(ctx context.Context, hwnd int64, keys string) error {
	f.hotkey = keys
	return nil
}
func (f *fakeInputDriver) FocusWindow(ctx context.Context, hwnd int64) error {
	f.focused = true
	return nil
}
func (f *fakeInputDriver) WindowTitle(ctx context.Context, hwnd int64) (string, error) { return "", nil }
func (f *fakeInputDriver) WindowClass(ctx context.Context, hwnd int64) (string, error) { return "", nil }
func (f *fakeInputDriver) WindowBounds(ctx context.Context, hwnd int64) (WindowBounds, error) {
	return WindowBounds{}, nil
}

func TestDesktopAgent_HotkeyAndFocus(t *testing.T) {
	driver := &fakeInputDriver{}
	a := NewDesktopAgent(1, fakeProbe{exists: true}, driver, Config{}, nil)

	res := a.CallTool(context.Background(), "hotkey", map[string]any{"keys": "ctrl+c"})
	if res.IsError {
		t.Fatalf("hotkey failed: %s", res.Error)
	}
	if driver.hotkey != "ctrl+c" {
		t.Errorf("expected hotkey ctrl+c, got %q", driver.hotkey)
	}

	res = a.CallTool(context.Background(), "window_focus", nil)
	if res.IsError {
		t.Fatalf("window_focus failed: %s", res.Error)
	}
	if !driver.focused {
		t.Error("expected window to be focused")
	}
}

type fakeIDEDriver struct {
	opened  string
	line    int
	lastCmd string
}

func (f *fakeIDEDriver) OpenFile(ctx context.Context, hwnd int64, path string) error {
	f.opened = path
	return nil
}
func (f *fakeIDEDriver) GotoLine(ctx context.Context, hwnd int64, line int) error {
	f.line = line
	return nil
}
func (f *fakeIDEDriver) RunTerminalCommand(ctx context.Context, hwnd int64, command string) (string, error) {
	f.lastCmd = command
	return "ok", nil
}

func TestIDEAgent_RunTerminalCommandIsSensitive(t *testing.T) {
	a := NewIDEAgent(1, fakeProbe{exists: true}, &fakeIDEDriver{}, Config{}, nil)
	var def *struct{ IsSensitive bool }
	for _, d := range a.GetToolDefinitions() {
		if d.Name == "run_terminal_command" {
			def = &struct{ IsSensitive bool }{d.IsSensitive}
		}
	}
	if def == nil || !def.IsSensitive {
		t.Fatal("run_terminal_command must be marked is_sensitive")
	}
}

func TestIDEAgent_OpenFileAndGotoLine(t *testing.T) {
	driver := &fakeIDEDriver{}
	a := NewIDEAgent(1, fakeProbe{exists: true}, driver, Config{}, nil)

	res := a.CallTool(context.Background(), "open_file", map[string]any{"path": "main.go"})
	if res.IsError {
		t.Fatalf("open_file failed: %s", res.Error)
	}
	if driver.opened != "main.go" {
		t.Errorf("expected opened main.go, got %q", driver.opened)
	}

	res = a.CallTool(context.Background(), "goto_line", map[string]any{"line": 42.0})
	if res.IsError {
		t.Fatalf("goto_line failed: %s", res.Error)
	}
	if driver.line != 42 {
		t.Errorf("expected line 42, got %d", driver.line)
	}
}
