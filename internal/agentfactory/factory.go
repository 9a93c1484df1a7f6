// Package agentfactory classifies a window into an AppAgent subclass and
// caches instances by hwnd, per spec §4.6. Grounded on
// internal/tools/computeruse/tool.go's resolveEdge/autoSelectEdge
// auto-detection style (kept as a pattern, not copied -- that code resolves
// a remote edge id, this resolves a local app_type).
package agentfactory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/deskagent/deskagent/internal/appagent"
)

// windowClassMap maps OS window-class strings to an app_type.
var windowClassMap = map[string]appagent.AppType{
	"Chrome_WidgetWin_1":           appagent.TypeBrowser,
	"MozillaWindowClass":           appagent.TypeBrowser,
	"IEFrame":                      appagent.TypeBrowser,
	"ApplicationFrameWindow":       appagent.TypeBrowser,
	"SunAwtFrame":                  appagent.TypeIDE,
	"Notepad++":                    appagent.TypeIDE,
	"VSCodeMainWindow":             appagent.TypeIDE,
	"OpusApp":                      appagent.TypeOffice,
	"XLMAIN":                       appagent.TypeOffice,
	"ConsoleWindowClass":           appagent.TypeTerminal,
	"CASCADIA_HOSTING_WINDOW_CLASS": appagent.TypeTerminal,
}

var titleKeywordMap = []struct {
	keywords []string
	appType  appagent.AppType
}{
	{[]string{"chrome", "firefox", "edge", "safari", "opera", "brave", "vivaldi"}, appagent.TypeBrowser},
	{[]string{"visual studio", "vscode", "pycharm", "intellij", "webstorm", "sublime", "atom", "notepad++"}, appagent.TypeIDE},
	{[]string{"terminal", "cmd", "powershell", "bash"}, appagent.TypeTerminal},
}

// WindowInfo is the classification input: the OS window-class string and
// title, as reported by the window probe.
type WindowInfo struct {
	Class string
	Title string
}

// Builder constructs a concrete AppAgent for a given hwnd and WindowInfo.
// One Builder is registered per app_type (built-in or custom).
type Builder func(hwnd int64, info WindowInfo) (*appagent.AppAgent, error)

// Factory classifies windows into app_types and caches AppAgent instances.
type Factory struct {
	mu       sync.Mutex
	builders map[appagent.AppType]Builder
	cache    map[int64]*appagent.AppAgent
}

// New builds a Factory with no builders registered; register built-ins via
// Register before the first Create call.
func New() *Factory {
	return &Factory{
		builders: map[appagent.AppType]Builder{},
		cache:    map[int64]*appagent.AppAgent{},
	}
}

// Register associates an app_type with a Builder. Re-registering an
// existing app_type replaces it, matching the spec's "custom > built-in"
// precedence when the caller explicitly re-registers a built-in name.
func (f *Factory) Register(appType appagent.AppType, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[appType] = builder
}

// Create returns the cached AppAgent for hwnd if present; otherwise
// classifies the window (using appType when given, else autodetecting from
// info), selects the matching Builder (falling back to Desktop), builds,
// caches, and returns the instance.
func (f *Factory) Create(hwnd int64, appType appagent.AppType, info WindowInfo) (*appagent.AppAgent, error) {
	f.mu.Lock()
	if cached, ok := f.cache[hwnd]; ok {
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	resolved := appType
	if resolved == "" {
		resolved = Classify(info)
	}

	f.mu.Lock()
	builder, ok := f.builders[resolved]
	if !ok {
		builder, ok = f.builders[appagent.TypeDesktop]
	}
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("agentfactory: no builder registered for %q and no desktop fallback", resolved)
	}

	agent, err := builder(hwnd, info)
	if err != nil {
		return nil, fmt.Errorf("agentfactory: build %q agent for hwnd %d: %w", resolved, hwnd, err)
	}

	f.mu.Lock()
	f.cache[hwnd] = agent
	f.mu.Unlock()
	return agent, nil
}

// RemoveCached drops a stale cache entry, called by the host on
// WindowLostError.
func (f *Factory) RemoveCached(hwnd int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, hwnd)
}

// Get returns the cached instance for hwnd, if any.
func (f *Factory) Get(hwnd int64) (*appagent.AppAgent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.cache[hwnd]
	return a, ok
}

// Classify autodetects an app_type from window-class lookup, falling back to
// title-keyword heuristics, falling back to desktop.
func Classify(info WindowInfo) appagent.AppType {
	if appType, ok := windowClassMap[info.Class]; ok {
		return appType
	}

	title := strings.ToLower(info.Title)
	for _, entry := range titleKeywordMap {
		for _, kw := range entry.keywords {
			if strings.Contains(title, kw) {
				return entry.appType
			}
		}
	}

	return appagent.TypeDesktop
}
