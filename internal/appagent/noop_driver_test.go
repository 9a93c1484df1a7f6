package appagent

import (
	"context"
	"testing"
)

func TestUnimplementedInputDriver_ReturnsErrorOnEveryCall(t *testing.T) {
	d := UnimplementedInputDriver{}
	ctx := context.Background()

	if err := d.MouseClick(ctx, 1, 0, 0, "left", 1); err == nil {
		t.Error("expected MouseClick to fail")
	}
	if err := d.KeyboardType(ctx, 1, "hello"); err == nil {
		t.Error("expected KeyboardType to fail")
	}
	if err := d.Hotkey(ctx, 1, "ctrl+s"); err == nil {
		t.Error("expected Hotkey to fail")
	}
	if err := d.FocusWindow(ctx, 1); err == nil {
		t.Error("expected FocusWindow to fail")
	}
	if _, err := d.WindowTitle(ctx, 1); err == nil {
		t.Error("expected WindowTitle to fail")
	}
	if _, err := d.WindowClass(ctx, 1); err == nil {
		t.Error("expected WindowClass to fail")
	}
	if _, err := d.WindowBounds(ctx, 1); err == nil {
		t.Error("expected WindowBounds to fail")
	}
}

func TestUnimplementedIDEDriver_ReturnsErrorOnEveryCall(t *testing.T) {
	d := UnimplementedIDEDriver{}
	ctx := context.Background()

	if err := d.OpenFile(ctx, 1, "main.go"); err == nil {
		t.Error("expected OpenFile to fail")
	}
	if err := d.GotoLine(ctx, 1, 42); err == nil {
		t.Error("expected GotoLine to fail")
	}
	if _, err := d.RunTerminalCommand(ctx, 1, "go test ./..."); err == nil {
		t.Error("expected RunTerminalCommand to fail")
	}
}
