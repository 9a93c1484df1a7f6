package hostagent

import (
	"context"
	"testing"

	"github.com/deskagent/deskagent/internal/appagent"
	"github.com/deskagent/deskagent/internal/config"
	"github.com/deskagent/deskagent/internal/coretypes"
)

type fakeWindowProbe struct {
	alive map[int64]bool
}

func (p *fakeWindowProbe) Exists(hwnd int64) bool       { return p.alive[hwnd] }
func (p *fakeWindowProbe) WindowClass(hwnd int64) string { return "Chrome_WidgetWin_1" }
func (p *fakeWindowProbe) WindowTitle(hwnd int64) string { return "fake window" }

func testConfig() *config.AgentConfig {
	return &config.AgentConfig{
		MaxIterations:          20,
		TaskTimeoutS:           1800,
		MaxConsecutiveFailures: 3,
		MaxTotalFailures:       10,
		MaxContextTokens:       120000,
		MaxConcurrentTasks:     3,
		MaxAPIConcurrency:      5,
		CheckpointInterval:     5,
		ScreenshotDelayMs:      0,
		SensitiveTools:         []string{"delete_file", "system_command"},
	}
}

func newTestAppAgent(hwnd int64, probe *fakeWindowProbe) *appagent.AppAgent {
	a := appagent.New(hwnd, appagent.TypeBrowser, probe, nil, appagent.Config{}, nil)
	return a
}

func TestNew_RegistersBuiltinSetTaskStatusTool(t *testing.T) {
	h := New(Deps{Config: testConfig()})
	defs := h.toolDefinitions()
	if len(defs) != 1 || defs[0].Name != setTaskStatusTool {
		t.Fatalf("expected only set_task_status registered, got %+v", defs)
	}
	if _, ok := h.lookupTool(setTaskStatusTool); !ok {
		t.Fatal("set_task_status should be dispatchable")
	}
}

func TestRegisterAppAgent_AddsToolAndLiveMap(t *testing.T) {
	h := New(Deps{Config: testConfig()})
	probe := &fakeWindowProbe{alive: map[int64]bool{42: true}}
	agent := newTestAppAgent(42, probe)

	h.RegisterAppAgent(agent)

	if _, ok := h.AppAgent(42); !ok {
		t.Fatal("expected hwnd 42 in the live AppAgent map")
	}
	name := appAgentToolName(42)
	if _, ok := h.lookupTool(name); !ok {
		t.Fatalf("expected tool %q registered", name)
	}
	found := false
	for _, def := range h.toolDefinitions() {
		if def.Name == name {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q among advertised tool definitions", name)
	}
}

func TestUnregisterAppAgent_RemovesBothMaps(t *testing.T) {
	h := New(Deps{Config: testConfig()})
	probe := &fakeWindowProbe{alive: map[int64]bool{7: true}}
	h.RegisterAppAgent(newTestAppAgent(7, probe))

	h.UnregisterAppAgent(7)

	if _, ok := h.AppAgent(7); ok {
		t.Fatal("expected hwnd 7 removed from the live AppAgent map")
	}
	if _, ok := h.lookupTool(appAgentToolName(7)); ok {
		t.Fatal("expected app_agent_7 removed from the tool registry")
	}
}

func TestRegisterAppAgent_WindowLostEvictsFromRegistry(t *testing.T) {
	h := New(Deps{Config: testConfig()})
	probe := &fakeWindowProbe{alive: map[int64]bool{99: false}}
	agent := newTestAppAgent(99, probe)
	h.RegisterAppAgent(agent)

	name := appAgentToolName(99)
	result := h.dispatchTool(context.Background(), coretypes.ToolCall{ID: "t1", Name: name, Arguments: map[string]any{"task": "do a thing"}})

	if !result.IsError {
		t.Fatal("expected a failing ToolResult when the window is lost")
	}
	if _, ok := h.AppAgent(99); ok {
		t.Fatal("expected the AppAgent removed from the live map after its window is lost")
	}
	if _, ok := h.lookupTool(name); ok {
		t.Fatal("expected the wrapper tool removed from the registry after its window is lost")
	}
}

func TestDispatchTool_UnknownToolNameFailsClosed(t *testing.T) {
	h := New(Deps{Config: testConfig()})
	result := h.dispatchTool(context.Background(), coretypes.ToolCall{ID: "t1", Name: "does_not_exist"})
	if !result.IsError {
		t.Fatal("unknown tool name must fail closed")
	}
}
