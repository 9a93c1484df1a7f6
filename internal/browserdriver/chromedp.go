// Package browserdriver implements appagent.BrowserDriver over a real
// browser automation backend: chromedp (Chrome DevTools Protocol) by
// default, playwright-go as a config-selected alternative. Grounded on
// cmd/nexus-edge's browser_tools.go relay (allocator/context-per-session,
// chromedp.Run over an action slice) and internal/tools/browser/pool.go's
// instance-pool shape, adapted from one shared pool to one chromedp tab
// per hwnd since each BrowserAppAgent already owns a single window.
package browserdriver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/deskagent/deskagent/internal/config"
)

// ChromeDriver drives one chromedp tab per hwnd. The first call touching an
// hwnd lazily allocates its tab; Close tears every tab down.
type ChromeDriver struct {
	cfg    config.BrowserConfig
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*chromeSession
}

type chromeSession struct {
	allocCancel context.CancelFunc
	taskCtx     context.Context
	taskCancel  context.CancelFunc
}

// NewChromeDriver builds a ChromeDriver from cfg. cfg.RemoteURL, if set,
// connects to an already-running Chrome instance (chrome --remote-debugging-port);
// otherwise chromedp launches and manages its own headless/headed instance.
func NewChromeDriver(cfg config.BrowserConfig, logger *slog.Logger) *ChromeDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeDriver{cfg: cfg, logger: logger.With("component", "chromedp-driver"), sessions: make(map[int64]*chromeSession)}
}

func (d *ChromeDriver) session(ctx context.Context, hwnd int64) *chromeSession {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sessions[hwnd]; ok {
		return s
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if d.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), d.cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", d.cfg.Headless),
			chromedp.WindowSize(d.cfg.ViewportWidth, d.cfg.ViewportHeight),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{allocCancel: allocCancel, taskCtx: taskCtx, taskCancel: taskCancel}
	d.sessions[hwnd] = s
	return s
}

func (d *ChromeDriver) Navigate(ctx context.Context, hwnd int64, url string) error {
	s := d.session(ctx, hwnd)
	return chromedp.Run(s.taskCtx, chromedp.Navigate(url))
}

func (d *ChromeDriver) Click(ctx context.Context, hwnd int64, x, y int) error {
	s := d.session(ctx, hwnd)
	return chromedp.Run(s.taskCtx, chromedp.MouseClickXY(float64(x), float64(y)))
}

func (d *ChromeDriver) TypeText(ctx context.Context, hwnd int64, text string) error {
	s := d.session(ctx, hwnd)
	return chromedp.Run(s.taskCtx, chromedp.KeyEvent(text))
}

func (d *ChromeDriver) Scroll(ctx context.Context, hwnd int64, direction string, amount int) error {
	s := d.session(ctx, hwnd)
	dx, dy := scrollDelta(direction, amount)
	script := fmt.Sprintf("window.scrollBy(%d, %d)", dx, dy)
	return chromedp.Run(s.taskCtx, chromedp.Evaluate(script, nil))
}

// Screenshot captures the current tab as PNG, used by the host's
// final_screenshot/verifier path when the browser is the target window.
func (d *ChromeDriver) Screenshot(ctx context.Context, hwnd int64) ([]byte, error) {
	s := d.session(ctx, hwnd)
	var buf []byte
	if err := chromedp.Run(s.taskCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("browserdriver: screenshot hwnd %d: %w", hwnd, err)
	}
	return buf, nil
}

// Close tears down hwnd's tab, or every tab if hwnd is 0.
func (d *ChromeDriver) Close(hwnd int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if hwnd != 0 {
		if s, ok := d.sessions[hwnd]; ok {
			s.taskCancel()
			s.allocCancel()
			delete(d.sessions, hwnd)
		}
		return
	}
	for id, s := range d.sessions {
		s.taskCancel()
		s.allocCancel()
		delete(d.sessions, id)
	}
}

func scrollDelta(direction string, amount int) (int, int) {
	switch direction {
	case "up":
		return 0, -amount
	case "down":
		return 0, amount
	case "left":
		return -amount, 0
	case "right":
		return amount, 0
	default:
		return 0, amount
	}
}
