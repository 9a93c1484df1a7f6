package appagent

import (
	"context"
	"fmt"
)

// UnimplementedInputDriver and UnimplementedIDEDriver satisfy InputDriver/
// IDEDriver with a clear "not wired" error on every call. No example in the
// corpus this module was built from touches native OS input injection or
// editor automation (the teacher is a chat gateway, not a desktop-control
// tool), so there's no library here to ground a real accessibility-API
// driver on; cmd/deskagentd registers these stand-ins for desktop/ide
// windows until a platform-specific driver is plugged in, so a misrouted
// tool call fails loudly instead of silently doing nothing.
type UnimplementedInputDriver struct{}

func (UnimplementedInputDriver) MouseClick(_ context.Context, hwnd int64, _, _ int, _ string, _ int) error {
	return fmt.Errorf("appagent: no InputDriver configured for hwnd %d", hwnd)
}

func (UnimplementedInputDriver) KeyboardType(_ context.Context, hwnd int64, _ string) error {
	return fmt.Errorf("appagent: no InputDriver configured for hwnd %d", hwnd)
}

func (UnimplementedInputDriver) Hotkey(_ context.Context, hwnd int64, _ string) error {
	return fmt.Errorf("appagent: no InputDriver configured for hwnd %d", hwnd)
}

func (UnimplementedInputDriver) FocusWindow(_ context.Context, hwnd int64) error {
	return fmt.Errorf("appagent: no InputDriver configured for hwnd %d", hwnd)
}

func (UnimplementedInputDriver) WindowTitle(_ context.Context, hwnd int64) (string, error) {
	return "", fmt.Errorf("appagent: no InputDriver configured for hwnd %d", hwnd)
}

func (UnimplementedInputDriver) WindowClass(_ context.Context, hwnd int64) (string, error) {
	return "", fmt.Errorf("appagent: no InputDriver configured for hwnd %d", hwnd)
}

func (UnimplementedInputDriver) WindowBounds(_ context.Context, hwnd int64) (WindowBounds, error) {
	return WindowBounds{}, fmt.Errorf("appagent: no InputDriver configured for hwnd %d", hwnd)
}

type UnimplementedIDEDriver struct{}

func (UnimplementedIDEDriver) OpenFile(_ context.Context, hwnd int64, _ string) error {
	return fmt.Errorf("appagent: no IDEDriver configured for hwnd %d", hwnd)
}

func (UnimplementedIDEDriver) GotoLine(_ context.Context, hwnd int64, _ int) error {
	return fmt.Errorf("appagent: no IDEDriver configured for hwnd %d", hwnd)
}

func (UnimplementedIDEDriver) RunTerminalCommand(_ context.Context, hwnd int64, _ string) (string, error) {
	return "", fmt.Errorf("appagent: no IDEDriver configured for hwnd %d", hwnd)
}
