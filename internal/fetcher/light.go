package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/evidence"
	"github.com/urwalabs/urwa/internal/trace"
	"github.com/urwalabs/urwa/internal/types"
)

// LightFetcher is the cheapest tier: plain net/http with rotating user
// agents and transparent brotli/gzip/deflate decompression. No JavaScript
// execution; JS-walled pages surface as parse_empty or challenge and
// escalate from there.
type LightFetcher struct {
	client   *http.Client
	cfg      config.FetcherConfig
	evidence *evidence.Capturer
	logger   *slog.Logger
	uaIndex  atomic.Int64
	// redirects counts hops for the current request via CheckRedirect.
}

// NewLightFetcher builds the HTTP tier.
func NewLightFetcher(cfg config.FetcherConfig, ev *evidence.Capturer, logger *slog.Logger) (*LightFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// Decompression is handled below so brotli is covered too.
		DisableCompression: true,
	}

	f := &LightFetcher{
		cfg:      cfg,
		evidence: ev,
		logger:   logger.With("component", "light_fetcher"),
	}
	f.client = &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return f, nil
}

// Strategy identifies this tier.
func (f *LightFetcher) Strategy() types.Strategy { return types.StrategyLight }

// HTTPClient exposes the underlying client so the site profiler probes
// through the same transport and cookie jar.
func (f *LightFetcher) HTTPClient() *http.Client { return f.client }

// Fetch retrieves the URL over plain HTTP.
func (f *LightFetcher) Fetch(ctx context.Context, u *url.URL) *types.FetchOutcome {
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.LightTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return types.Failure(types.FailUnknown, 0, time.Since(start))
	}
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")

	resp, err := f.client.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		// The parent deadline may have fired rather than ours; either way
		// the attempt is a timeout unless the caller cancelled outright.
		if kind == types.FailTimeout && ctx.Err() == context.Canceled {
			kind = types.FailCancelled
		}
		f.logger.Debug("light fetch failed", "url", u.String(), "kind", kind, "error", err)
		return types.Failure(kind, 0, time.Since(start))
	}
	defer resp.Body.Close()

	redirects := 0
	if resp.Request != nil && resp.Request.URL.String() != u.String() {
		redirects = countRedirects(resp)
	}

	var reader io.Reader = resp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}
	reader, err = decompressReader(resp.Header.Get("Content-Encoding"), reader)
	if err != nil {
		return types.Failure(types.FailUnknown, resp.StatusCode, time.Since(start))
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		kind := classifyTransportError(err)
		return types.Failure(kind, resp.StatusCode, time.Since(start))
	}

	elapsed := time.Since(start)
	outcome := &types.FetchOutcome{
		FinalURL:      resp.Request.URL.String(),
		HTTPStatus:    resp.StatusCode,
		Headers:       resp.Header,
		Elapsed:       elapsed,
		RedirectCount: redirects,
	}

	kind := classifyResponse(resp.StatusCode, body)
	if kind == "" {
		outcome.Success = true
		outcome.Content = body
		f.logger.Debug("light fetch complete",
			"url", u.String(), "status", resp.StatusCode,
			"size", len(body), "duration", elapsed)
		return outcome
	}

	outcome.Kind = kind
	if kind == types.FailRateLimit {
		outcome.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	if f.evidence != nil && evidence.ShouldCapture(kind) {
		outcome.EvidenceHandle = f.evidence.Store(evidence.Capture{
			TraceID:    trace.FromContext(ctx),
			URL:        u.String(),
			Strategy:   types.StrategyLight,
			Kind:       kind,
			HTTPStatus: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
		})
	}
	f.logger.Debug("light fetch failed",
		"url", u.String(), "status", resp.StatusCode, "kind", kind)
	return outcome
}

// Close releases idle connections.
func (f *LightFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *LightFetcher) nextUserAgent() string {
	if len(f.cfg.UserAgents) == 0 {
		return "UrwaBot/" + config.Version
	}
	idx := f.uaIndex.Add(1) % int64(len(f.cfg.UserAgents))
	return f.cfg.UserAgents[idx]
}

// countRedirects walks the via chain net/http leaves on the response.
func countRedirects(resp *http.Response) int {
	n := 0
	for r := resp.Request; r != nil && r.Response != nil; r = r.Response.Request {
		n++
		if n > 32 {
			break
		}
	}
	return n
}

// decompressReader wraps the body reader per Content-Encoding.
func decompressReader(encoding string, reader io.Reader) (io.Reader, error) {
	switch encoding {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
