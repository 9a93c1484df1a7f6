package agentfactory

import (
	"testing"

	"github.com/deskagent/deskagent/internal/appagent"
)

func TestClassify_ByWindowClass(t *testing.T) {
	got := Classify(WindowInfo{Class: "Chrome_WidgetWin_1", Title: "anything"})
	if got != appagent.TypeBrowser {
		t.Errorf("expected browser, got %s", got)
	}
}

func TestClassify_ByTitleKeyword(t *testing.T) {
	got := Classify(WindowInfo{Class: "unknown class", Title: "main.go - Visual Studio Code"})
	if got != appagent.TypeIDE {
		t.Errorf("expected ide, got %s", got)
	}
}

func TestClassify_FallsBackToDesktop(t *testing.T) {
	got := Classify(WindowInfo{Class: "SomeRandomClass", Title: "Untitled"})
	if got != appagent.TypeDesktop {
		t.Errorf("expected desktop fallback, got %s", got)
	}
}

func newTestAgent(hwnd int64) *appagent.AppAgent {
	return appagent.New(hwnd, appagent.TypeDesktop, nil, nil, appagent.Config{}, nil)
}

func TestCreate_CachesInstance(t *testing.T) {
	f := New()
	calls := 0
	f.Register(appagent.TypeDesktop, func(hwnd int64, info WindowInfo) (*appagent.AppAgent, error) {
		calls++
		return newTestAgent(hwnd), nil
	})

	a1, err := f.Create(7, "", WindowInfo{Class: "unknown", Title: "untitled"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := f.Create(7, "", WindowInfo{Class: "unknown", Title: "untitled"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1 != a2 {
		t.Error("expected cached instance to be returned on second Create")
	}
	if calls != 1 {
		t.Errorf("expected builder to be invoked once, got %d", calls)
	}
}

func TestCreate_FallsBackToDesktopBuilder(t *testing.T) {
	f := New()
	f.Register(appagent.TypeDesktop, func(hwnd int64, info WindowInfo) (*appagent.AppAgent, error) {
		return newTestAgent(hwnd), nil
	})

	a, err := f.Create(1, appagent.TypeOffice, WindowInfo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected a fallback agent instance")
	}
}

func TestCreate_ErrorsWithNoBuildersRegistered(t *testing.T) {
	f := New()
	_, err := f.Create(1, appagent.TypeDesktop, WindowInfo{})
	if err == nil {
		t.Fatal("expected error when no builders are registered")
	}
}

func TestRemoveCached_DropsEntry(t *testing.T) {
	f := New()
	f.Register(appagent.TypeDesktop, func(hwnd int64, info WindowInfo) (*appagent.AppAgent, error) {
		return newTestAgent(hwnd), nil
	})

	_, _ = f.Create(3, "", WindowInfo{})
	if _, ok := f.Get(3); !ok {
		t.Fatal("expected instance to be cached")
	}

	f.RemoveCached(3)
	if _, ok := f.Get(3); ok {
		t.Error("expected cache entry to be removed")
	}
}
