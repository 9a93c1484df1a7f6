package appagent

import "context"

// InputDriver is the OS-level automation surface DesktopAppAgent and
// IDEAppAgent primitives call into. A concrete implementation wraps the
// platform's accessibility/input-injection APIs; tests use a fake.
type InputDriver interface {
	MouseClick(ctx context.Context, hwnd int64, x, y int, button string, clicks int) error
	KeyboardType(ctx context.Context, hwnd int64, text string) error
	Hotkey(ctx context.Context, hwnd int64, keys string) error
	FocusWindow(ctx context.Context, hwnd int64) error
	WindowTitle(ctx context.Context, hwnd int64) (string, error)
	WindowClass(ctx context.Context, hwnd int64) (string, error)
	WindowBounds(ctx context.Context, hwnd int64) (WindowBounds, error)
}

// BrowserDriver is the chromedp/playwright-backed automation surface
// BrowserAppAgent primitives call into. Grounded on
// internal/tools/browser/browser.go's action handlers, adapted from a
// playwright Page to an hwnd-addressed abstraction so the same AppAgent
// contract covers both chromedp and playwright backends.
type BrowserDriver interface {
	Navigate(ctx context.Context, hwnd int64, url string) error
	Click(ctx context.Context, hwnd int64, x, y int) error
	TypeText(ctx context.Context, hwnd int64, text string) error
	Scroll(ctx context.Context, hwnd int64, direction string, amount int) error
}

// IDEDriver is the editor/terminal automation surface IDEAppAgent primitives
// call into.
type IDEDriver interface {
	OpenFile(ctx context.Context, hwnd int64, path string) error
	GotoLine(ctx context.Context, hwnd int64, line int) error
	RunTerminalCommand(ctx context.Context, hwnd int64, command string) (string, error)
}
