package osprobe

import "testing"

func TestRegistry_RegisterAndExists(t *testing.T) {
	r := New(nil)
	if r.Exists(1) {
		t.Fatal("expected unregistered hwnd to not exist")
	}

	r.Register(1, Window{Class: "Chrome_WidgetWin_1", Title: "example.com"})
	if !r.Exists(1) {
		t.Fatal("expected registered hwnd to exist")
	}
	if got := r.WindowClass(1); got != "Chrome_WidgetWin_1" {
		t.Errorf("WindowClass(1) = %q, want Chrome_WidgetWin_1", got)
	}
	if got := r.WindowTitle(1); got != "example.com" {
		t.Errorf("WindowTitle(1) = %q, want example.com", got)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New(nil)
	r.Register(5, Window{Class: "c", Title: "t"})
	r.Unregister(5)
	if r.Exists(5) {
		t.Fatal("expected unregistered hwnd to no longer exist")
	}
}

func TestRegistry_UnknownHwndReturnsEmptyMetadata(t *testing.T) {
	r := New(nil)
	if got := r.WindowClass(99); got != "" {
		t.Errorf("WindowClass(99) = %q, want empty", got)
	}
	if got := r.WindowTitle(99); got != "" {
		t.Errorf("WindowTitle(99) = %q, want empty", got)
	}
}
