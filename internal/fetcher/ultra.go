package fetcher

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/evidence"
	"github.com/urwalabs/urwa/internal/types"
)

// UltraFetcher is the heaviest tier: a hardened browser with the full
// evasion flag set, a long timeout for slow challenge resolution, and
// screenshot capture on failure so blocked pages can be inspected.
type UltraFetcher struct {
	host     *browserHost
	cfg      config.FetcherConfig
	evidence *evidence.Capturer
	logger   *slog.Logger
}

// NewUltraFetcher builds the ultra tier. The browser launches lazily on
// first fetch.
func NewUltraFetcher(cfg config.FetcherConfig, ev *evidence.Capturer, logger *slog.Logger) *UltraFetcher {
	log := logger.With("component", "ultra_fetcher")
	flags := func(l *launcher.Launcher) *launcher.Launcher {
		return l.
			Set("disable-web-security").
			Set("disable-features", "IsolateOrigins,site-per-process").
			Set("window-size", "1920,1080").
			Set("lang", "en-US")
	}
	return &UltraFetcher{
		host:     newBrowserHost(log, flags),
		cfg:      cfg,
		evidence: ev,
		logger:   log,
	}
}

// Strategy identifies this tier.
func (f *UltraFetcher) Strategy() types.Strategy { return types.StrategyUltra }

// Fetch navigates with the hardened browser and captures a screenshot
// when the attempt ends in a challenge or block.
func (f *UltraFetcher) Fetch(ctx context.Context, u *url.URL) *types.FetchOutcome {
	return browserFetch(ctx, browserFetchParams{
		host:       f.host,
		url:        u,
		timeout:    f.cfg.UltraTimeout,
		strategy:   types.StrategyUltra,
		stealth:    true,
		screenshot: true,
		evidence:   f.evidence,
		logger:     f.logger,
	})
}

// Close shuts the browser down.
func (f *UltraFetcher) Close() error { return f.host.close() }
