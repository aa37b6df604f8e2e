package fetcher

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/evidence"
	"github.com/urwalabs/urwa/internal/trace"
	"github.com/urwalabs/urwa/internal/types"
)

// StealthFetcher renders pages in a headless browser with fingerprint
// patches applied, defeating JS walls and most passive bot detection.
type StealthFetcher struct {
	host     *browserHost
	cfg      config.FetcherConfig
	evidence *evidence.Capturer
	logger   *slog.Logger
}

// NewStealthFetcher builds the stealth tier. The browser launches lazily
// on first fetch.
func NewStealthFetcher(cfg config.FetcherConfig, ev *evidence.Capturer, logger *slog.Logger) *StealthFetcher {
	log := logger.With("component", "stealth_fetcher")
	return &StealthFetcher{
		host:     newBrowserHost(log, nil),
		cfg:      cfg,
		evidence: ev,
		logger:   log,
	}
}

// Strategy identifies this tier.
func (f *StealthFetcher) Strategy() types.Strategy { return types.StrategyStealth }

// Fetch navigates to the URL with stealth patches and returns the
// rendered HTML.
func (f *StealthFetcher) Fetch(ctx context.Context, u *url.URL) *types.FetchOutcome {
	return browserFetch(ctx, browserFetchParams{
		host:     f.host,
		url:      u,
		timeout:  f.cfg.StealthTimeout,
		strategy: types.StrategyStealth,
		stealth:  true,
		evidence: f.evidence,
		logger:   f.logger,
	})
}

// Close shuts the browser down.
func (f *StealthFetcher) Close() error { return f.host.close() }

// browserFetchParams parameterizes the shared rod navigation flow used by
// the stealth and ultra tiers.
type browserFetchParams struct {
	host       *browserHost
	url        *url.URL
	timeout    time.Duration
	strategy   types.Strategy
	stealth    bool
	screenshot bool
	evidence   *evidence.Capturer
	logger     *slog.Logger
}

func browserFetch(ctx context.Context, p browserFetchParams) *types.FetchOutcome {
	start := time.Now()

	browser, err := p.host.get()
	if err != nil {
		p.logger.Warn("browser unavailable", "error", err)
		return types.Failure(types.FailConnection, 0, time.Since(start))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	page, err := newPage(browser, p.stealth)
	if err != nil {
		return types.Failure(types.FailConnection, 0, time.Since(start))
	}
	defer page.Close()
	page = page.Context(fetchCtx)

	if err := page.Navigate(p.url.String()); err != nil {
		kind := classifyTransportError(err)
		if fetchCtx.Err() == context.DeadlineExceeded {
			kind = types.FailTimeout
		} else if ctx.Err() == context.Canceled {
			kind = types.FailCancelled
		}
		p.logger.Debug("browser navigation failed",
			"url", p.url.String(), "strategy", p.strategy, "kind", kind, "error", err)
		return types.Failure(kind, 0, time.Since(start))
	}

	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		if fetchCtx.Err() == context.DeadlineExceeded {
			return types.Failure(types.FailTimeout, 0, time.Since(start))
		}
		if ctx.Err() == context.Canceled {
			return types.Failure(types.FailCancelled, 0, time.Since(start))
		}
		// Busy pages never settle; proceed with what rendered.
		p.logger.Debug("page stability timeout, continuing", "url", p.url.String())
	}

	html, err := page.HTML()
	if err != nil {
		if ctx.Err() == context.Canceled {
			return types.Failure(types.FailCancelled, 0, time.Since(start))
		}
		return types.Failure(types.FailUnknown, 0, time.Since(start))
	}
	body := []byte(html)

	finalURL := p.url.String()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	elapsed := time.Since(start)
	outcome := &types.FetchOutcome{
		FinalURL: finalURL,
		// Rendered documents do not expose the status code; a rendered
		// page that classifies clean counts as a 200.
		HTTPStatus: 200,
		Elapsed:    elapsed,
	}

	kind := classifyResponse(200, body)
	if kind == "" {
		outcome.Success = true
		outcome.Content = body
		p.logger.Debug("browser fetch complete",
			"url", p.url.String(), "strategy", p.strategy,
			"final_url", finalURL, "size", len(body), "duration", elapsed)
		return outcome
	}

	outcome.Kind = kind
	if p.evidence != nil && evidence.ShouldCapture(kind) {
		capture := evidence.Capture{
			TraceID:  trace.FromContext(ctx),
			URL:      p.url.String(),
			Strategy: p.strategy,
			Kind:     kind,
			Body:     body,
		}
		if p.screenshot {
			if shot, err := page.Screenshot(false, nil); err == nil {
				capture.Screenshot = shot
			}
		}
		outcome.EvidenceHandle = p.evidence.Store(capture)
	}
	p.logger.Debug("browser fetch failed",
		"url", p.url.String(), "strategy", p.strategy, "kind", kind)
	return outcome
}
