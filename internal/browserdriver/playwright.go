package browserdriver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/deskagent/deskagent/internal/config"
)

// PlaywrightDriver is the config-selected alternative to ChromeDriver,
// grounded on internal/tools/browser/pool.go's Playwright instance
// lifecycle, adapted from a shared acquire/release pool to one page per
// hwnd since each BrowserAppAgent owns a single window for its lifetime.
type PlaywrightDriver struct {
	cfg    config.BrowserConfig
	logger *slog.Logger

	pw      *playwright.Playwright
	browser playwright.Browser

	mu    sync.Mutex
	pages map[int64]playwright.Page
}

// NewPlaywrightDriver starts Playwright and launches (or attaches to, if
// cfg.RemoteURL is set) one browser shared across every hwnd's page.
func NewPlaywrightDriver(cfg config.BrowserConfig, logger *slog.Logger) (*PlaywrightDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("browserdriver: start playwright: %w", err)
	}

	var browser playwright.Browser
	if cfg.RemoteURL != "" {
		browser, err = pw.Chromium.Connect(cfg.RemoteURL)
	} else {
		browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(cfg.Headless),
		})
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("browserdriver: launch browser: %w", err)
	}

	return &PlaywrightDriver{
		cfg:     cfg,
		logger:  logger.With("component", "playwright-driver"),
		pw:      pw,
		browser: browser,
		pages:   make(map[int64]playwright.Page),
	}, nil
}

func (d *PlaywrightDriver) page(hwnd int64) (playwright.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pages[hwnd]; ok {
		return p, nil
	}

	ctx, err := d.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: d.cfg.ViewportWidth, Height: d.cfg.ViewportHeight},
	})
	if err != nil {
		return nil, fmt.Errorf("browserdriver: new context for hwnd %d: %w", hwnd, err)
	}
	p, err := ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("browserdriver: new page for hwnd %d: %w", hwnd, err)
	}
	d.pages[hwnd] = p
	return p, nil
}

func (d *PlaywrightDriver) Navigate(_ context.Context, hwnd int64, url string) error {
	p, err := d.page(hwnd)
	if err != nil {
		return err
	}
	_, err = p.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded})
	return err
}

func (d *PlaywrightDriver) Click(_ context.Context, hwnd int64, x, y int) error {
	p, err := d.page(hwnd)
	if err != nil {
		return err
	}
	return p.Mouse().Click(float64(x), float64(y))
}

func (d *PlaywrightDriver) TypeText(_ context.Context, hwnd int64, text string) error {
	p, err := d.page(hwnd)
	if err != nil {
		return err
	}
	return p.Keyboard().Type(text)
}

func (d *PlaywrightDriver) Scroll(_ context.Context, hwnd int64, direction string, amount int) error {
	p, err := d.page(hwnd)
	if err != nil {
		return err
	}
	dx, dy := scrollDelta(direction, amount)
	_, err = p.Evaluate(fmt.Sprintf("window.scrollBy(%d, %d)", dx, dy))
	return err
}

// Close tears down hwnd's page, or the whole browser if hwnd is 0.
func (d *PlaywrightDriver) Close(hwnd int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if hwnd != 0 {
		if p, ok := d.pages[hwnd]; ok {
			delete(d.pages, hwnd)
			return p.Close()
		}
		return nil
	}
	for id, p := range d.pages {
		_ = p.Close()
		delete(d.pages, id)
	}
	if err := d.browser.Close(); err != nil {
		return err
	}
	return d.pw.Stop()
}
