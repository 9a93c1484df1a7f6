package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deskagent/deskagent/internal/agentfactory"
	"github.com/deskagent/deskagent/internal/appagent"
	"github.com/deskagent/deskagent/internal/browserdriver"
	"github.com/deskagent/deskagent/internal/concurrency"
	"github.com/deskagent/deskagent/internal/config"
	"github.com/deskagent/deskagent/internal/events"
	"github.com/deskagent/deskagent/internal/hostagent"
	"github.com/deskagent/deskagent/internal/observability"
	"github.com/deskagent/deskagent/internal/osprobe"
	"github.com/deskagent/deskagent/internal/provider"
	"github.com/deskagent/deskagent/internal/security"
	"github.com/deskagent/deskagent/internal/taskstore"
	"github.com/deskagent/deskagent/internal/termination"
)

// daemon bundles the process-wide singletons a HostAgent needs, plus the
// ones the HTTP surface (commands_serve.go) drives directly: the task store
// for status lookups and the registry for window attach/detach.
type daemon struct {
	cfg     *config.AgentConfig
	logger  *observability.Logger
	metrics *observability.Metrics
	bus     *events.Bus
	wsSink  *events.WebSocketSink

	store    taskstore.TaskStore
	conc     *concurrency.Manager
	factory  *agentfactory.Factory
	registry *osprobe.Registry
	browser  appagent.BrowserDriver
	closer   func() error

	tracer         *observability.Tracer
	tracerShutdown func(context.Context) error

	host *hostagent.HostAgent
}

// buildDaemon wires every collaborator from cfg, mirroring gateway.NewManagedServer's
// single construction point for the whole dependency graph.
func buildDaemon(ctx context.Context, cfg *config.AgentConfig) (*daemon, error) {
	logger := observability.NewLogger(observability.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	metrics := observability.NewMetrics()

	wsSink := events.NewWebSocketSink(slog.Default())
	bus := events.New(wsSink)

	store, err := buildTaskStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("deskagentd: build task store: %w", err)
	}

	concCfg := cfg.ToConcurrencyConfig()
	conc := concurrency.New(concurrency.Config{
		MaxConcurrentTasks: concCfg.MaxConcurrentTasks,
		WindowLockTimeout:  cfg.TaskTimeout(),
		MaxAPIConcurrency:  concCfg.MaxAPIConcurrency,
		MinAPIIntervalMs:   int64(concCfg.MinAPIIntervalMs),
	}, slog.Default())

	llmClient, err := provider.New(ctx, cfg.LLM.DefaultProvider, llmConfigFor(cfg), bedrockConfigFor(cfg))
	if err != nil {
		return nil, fmt.Errorf("deskagentd: build llm client: %w", err)
	}

	var verifier *termination.Verifier
	if cfg.VerifySuccess {
		verifier = termination.NewVerifier(llmClient, termination.VerifierConfig{MinConfidence: cfg.MinVerificationConfidence}, slog.Default())
	}

	browser, closer, err := buildBrowserDriver(cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("deskagentd: build browser driver: %w", err)
	}
	registry := osprobe.New(nil)

	factory := agentfactory.New()
	registerAppAgentBuilders(factory, cfg, registry, browser)

	tracer, tracerShutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "deskagentd",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Attributes:     cfg.Tracing.Attributes,
		EnableInsecure: cfg.Tracing.Insecure,
	})

	host := hostagent.New(hostagent.Deps{
		EventBus:     bus,
		TaskStore:    store,
		Concurrency:  conc,
		AgentFactory: factory,
		LLMClient:    llmClient,
		Verifier:     verifier,
		WindowProbe:  registry,
		Security:     security.NewValidator(),
		Config:       cfg,
		Metrics:      metrics,
		Logger:       logger,
		Tracer:       tracer,
	})

	return &daemon{
		cfg: cfg, logger: logger, metrics: metrics, bus: bus, wsSink: wsSink,
		store: store, conc: conc, factory: factory, registry: registry,
		browser: browser, closer: closer,
		tracer: tracer, tracerShutdown: tracerShutdown,
		host: host,
	}, nil
}

// buildBrowserDriver picks the chromedp or playwright backend per
// cfg.Backend (config.validateConfig already rejects anything else), and
// returns a shutdown func that tears down whichever one was built.
func buildBrowserDriver(cfg config.BrowserConfig) (appagent.BrowserDriver, func() error, error) {
	switch cfg.Backend {
	case "playwright":
		d, err := browserdriver.NewPlaywrightDriver(cfg, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		return d, func() error { return d.Close(0) }, nil
	default:
		d := browserdriver.NewChromeDriver(cfg, slog.Default())
		return d, func() error { d.Close(0); return nil }, nil
	}
}

func buildTaskStore(cfg *config.AgentConfig) (taskstore.TaskStore, error) {
	switch {
	case cfg.DBPath == ":memory:":
		return taskstore.NewMemoryStore(), nil
	default:
		return taskstore.NewSQLiteStore(cfg.DBPath)
	}
}

func llmConfigFor(cfg *config.AgentConfig) provider.Config {
	p := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	return provider.Config{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.DefaultModel,
	}
}

func bedrockConfigFor(cfg *config.AgentConfig) provider.BedrockConfig {
	p := cfg.LLM.Providers["bedrock"]
	return provider.BedrockConfig{Region: p.Region}
}

// registerAppAgentBuilders wires every AppAgent subclass the factory can
// build: a real chromedp/playwright-backed browser builder, and desktop/ide
// builders that fail loudly until a platform InputDriver/IDEDriver is
// plugged in (see appagent.UnimplementedInputDriver's doc comment).
func registerAppAgentBuilders(factory *agentfactory.Factory, cfg *config.AgentConfig, probe appagent.WindowProbe, browser appagent.BrowserDriver) {
	appCfg := appagent.Config{
		CoordinateScale:   cfg.CoordinateScale,
		ScreenshotDelayMs: cfg.ScreenshotDelayMs,
	}

	factory.Register(appagent.TypeBrowser, func(hwnd int64, info agentfactory.WindowInfo) (*appagent.AppAgent, error) {
		return appagent.NewBrowserAgent(hwnd, probe, browser, appCfg, slog.Default()), nil
	})
	factory.Register(appagent.TypeDesktop, func(hwnd int64, info agentfactory.WindowInfo) (*appagent.AppAgent, error) {
		return appagent.NewDesktopAgent(hwnd, probe, appagent.UnimplementedInputDriver{}, appCfg, slog.Default()), nil
	})
	factory.Register(appagent.TypeIDE, func(hwnd int64, info agentfactory.WindowInfo) (*appagent.AppAgent, error) {
		return appagent.NewIDEAgent(hwnd, probe, appagent.UnimplementedIDEDriver{}, appCfg, slog.Default()), nil
	})
}

// attachWindow registers hwnd with both the probe and the host, then
// materializes its AppAgent through the factory, the same class/title →
// app_type → AppAgent path Resume walks for each checkpointed window.
func (d *daemon) attachWindow(hwnd int64, class, title string) error {
	d.registry.Register(hwnd, osprobe.Window{Class: class, Title: title})
	agent, err := d.factory.Create(hwnd, "", agentfactory.WindowInfo{Class: class, Title: title})
	if err != nil {
		d.registry.Unregister(hwnd)
		return err
	}
	d.host.RegisterAppAgent(agent)
	return nil
}

func (d *daemon) detachWindow(hwnd int64) {
	d.host.UnregisterAppAgent(hwnd)
	d.registry.Unregister(hwnd)
}
