package fetcher

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// browserHost lazily launches one Chromium instance shared by a browser
// tier. The launch is deferred to the first fetch so constructing the
// engine on a machine without Chromium only fails when a browser strategy
// is actually needed.
type browserHost struct {
	logger *slog.Logger
	flags  func(*launcher.Launcher) *launcher.Launcher

	mu      sync.Mutex
	browser *rod.Browser
	err     error
}

func newBrowserHost(logger *slog.Logger, flags func(*launcher.Launcher) *launcher.Launcher) *browserHost {
	return &browserHost{logger: logger, flags: flags}
}

// get returns the shared browser, launching it on first use. A failed
// launch is retried on the next call rather than cached forever.
func (h *browserHost) get() (*rod.Browser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		return h.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	if h.flags != nil {
		l = h.flags(l)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	h.browser = browser
	h.logger.Info("browser launched")
	return browser, nil
}

// newPage opens a fresh page, with stealth patches when requested.
func newPage(browser *rod.Browser, stealthy bool) (*rod.Page, error) {
	if stealthy {
		return stealth.Page(browser)
	}
	return browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

func (h *browserHost) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser == nil {
		return nil
	}
	err := h.browser.Close()
	h.browser = nil
	return err
}
