// Package engine wires the scraping core together and runs the
// escalation loop: compliance gate, circuit breaker, site profile,
// strategy selection, paced fetches with typed retries, and result
// scoring, all bound to one trace ID per call.
package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/urwalabs/urwa/internal/cache"
	"github.com/urwalabs/urwa/internal/circuit"
	"github.com/urwalabs/urwa/internal/compliance"
	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/cost"
	"github.com/urwalabs/urwa/internal/evidence"
	"github.com/urwalabs/urwa/internal/fetcher"
	"github.com/urwalabs/urwa/internal/learner"
	"github.com/urwalabs/urwa/internal/logging"
	"github.com/urwalabs/urwa/internal/observability"
	"github.com/urwalabs/urwa/internal/profiler"
	"github.com/urwalabs/urwa/internal/ratelimit"
	"github.com/urwalabs/urwa/internal/retry"
	"github.com/urwalabs/urwa/internal/scorer"
	"github.com/urwalabs/urwa/internal/strategy"
	"github.com/urwalabs/urwa/internal/trace"
	"github.com/urwalabs/urwa/internal/types"
)

// Engine is the scraping core. One instance serves many concurrent
// Scrape calls.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	logRing *logging.Ring

	metrics  *observability.Metrics
	evidence *evidence.Capturer
	fetchers *fetcher.Set
	gate     *compliance.Gate
	profiles *profiler.Profiler
	limiter  *ratelimit.Limiter
	circuits *circuit.Registry
	learner  *learner.Learner
	selector *strategy.Selector
	cache    *cache.Cache
	scorer   *scorer.Scorer
	cost     *cost.Controller

	inflight singleflight.Group
}

// New assembles an engine from configuration. The learner's journal is
// replayed here; fetcher browsers launch lazily on first use.
func New(cfg *config.Config, logger *slog.Logger, logRing *logging.Ring) (*Engine, error) {
	metrics := observability.NewMetrics(logger)
	ev := evidence.NewCapturer(cfg.Evidence, logger)

	light, err := fetcher.NewLightFetcher(cfg.Fetcher, ev, logger)
	if err != nil {
		return nil, err
	}
	fetchers := fetcher.NewSet(
		light,
		fetcher.NewStealthFetcher(cfg.Fetcher, ev, logger),
		fetcher.NewUltraFetcher(cfg.Fetcher, ev, logger),
	)

	learn, err := learner.New(cfg.Learner, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger.With("component", "engine"),
		logRing:  logRing,
		metrics:  metrics,
		evidence: ev,
		fetchers: fetchers,
		gate:     compliance.NewGate(cfg.Compliance, cfg.Engine.UserAgent, logger),
		profiles: profiler.New(cfg.Profiler, light.HTTPClient(), cfg.Engine.UserAgent, logger),
		limiter:  ratelimit.NewLimiter(cfg.Rate, logger),
		circuits: circuit.NewRegistry(cfg.Circuit, logger),
		learner:  learn,
		selector: strategy.NewSelector(logger),
		cache:    cache.New(cfg.Cache, logger),
		scorer:   scorer.New(metrics.Observations()),
		cost:     cost.NewController(cfg.Cost, logger),
	}

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path, func() bool { return true })
	}
	return e, nil
}

// Close releases fetcher transports and flushes the learner journal.
func (e *Engine) Close() error {
	ferr := e.fetchers.Close()
	lerr := e.learner.Close()
	if ferr != nil {
		return ferr
	}
	return lerr
}

// Scrape executes one scrape call. The result is always non-nil; when its
// status is error the returned error is a *types.ScrapeError naming the
// terminal failure kind.
func (e *Engine) Scrape(ctx context.Context, req *types.Request) (*types.ScrapeResult, error) {
	start := time.Now()

	if req.TraceID == "" {
		req.TraceID = trace.NewID()
	}
	ctx = trace.With(ctx, req.TraceID)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Engine.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if req.URL == nil || (req.URL.Scheme != "http" && req.URL.Scheme != "https") || req.URL.Host == "" {
		return e.fail(req, types.FailInvalidURL, 0, start)
	}
	if !e.cfg.Engine.SSRFAllowPrivate {
		if err := checkTargetAddress(ctx, req.URL.Hostname()); err != nil {
			e.logger.WarnContext(ctx, "target address rejected",
				"url", req.URLString(), "error", err)
			return e.fail(req, types.FailInvalidURL, 0, start)
		}
	}

	fp := req.Fingerprint()
	if !req.BypassCache {
		if cached, ok := e.cache.Get(fp); ok {
			e.metrics.CacheHit()
			e.metrics.ObserveScrape(types.StatusSuccess, cached.StrategyUsed)
			cached.TraceID = req.TraceID
			e.logger.InfoContext(ctx, "cache hit", "url", req.URLString())
			return cached, nil
		}
	}

	// Single-flight: concurrent calls for the same fingerprint share one
	// execution. Errors are not cached — a waiter that received a shared
	// error runs its own attempt.
	v, err, shared := e.inflight.Do(fp, func() (any, error) {
		return e.run(ctx, req, fp, start)
	})
	if err != nil && shared {
		v, err = e.run(ctx, req, fp, start)
	}
	result := v.(*types.ScrapeResult)
	if result.Status == types.StatusSuccess && result.TraceID != req.TraceID {
		// A peer's execution produced this result.
		out := *result
		out.TraceID = req.TraceID
		out.Cached = true
		return &out, err
	}
	return result, err
}

// run is the escalation loop body executing under the single-flight slot.
// It always returns a non-nil result; the error mirrors error status.
func (e *Engine) run(ctx context.Context, req *types.Request, fp string, start time.Time) (*types.ScrapeResult, error) {
	domain := req.DomainKey()
	log := e.logger.With("url", req.URLString(), "domain", domain)

	decision := e.gate.Check(ctx, req.URL)
	if !decision.Allowed {
		log.InfoContext(ctx, "compliance denied", "reason", decision.Reason)
		kind := decision.Kind
		if kind == "" {
			kind = types.FailComplianceDenied
		}
		return e.fail(req, kind, 0, start)
	}
	if decision.Warning != "" {
		log.WarnContext(ctx, "caution-listed domain", "note", decision.Warning)
	}

	breaker := e.circuits.For(domain)
	admitted, releaseProbe := breaker.CanExecute()
	if !admitted {
		log.InfoContext(ctx, "circuit open, refusing call")
		e.metrics.SetCircuitState(domain, breaker.State().Gauge())
		return e.fail(req, types.FailCircuitOpen, 0, start)
	}
	// Frees the half-open probe slot even when this call exits before any
	// fetch outcome is recorded (cancellation, cost refusal, pacing abort).
	defer releaseProbe()

	profile := e.profiles.Get(ctx, req.URL)
	pacing := profile.RecommendedDelay
	if decision.CrawlDelay > pacing {
		pacing = decision.CrawlDelay
	}
	e.limiter.SetMinimum(domain, pacing)

	stats, _ := e.learner.Stats(domain)
	order := e.selector.Choose(profile, stats, req)
	log.InfoContext(ctx, "scrape starting",
		"risk", profile.Risk, "order", order, "trace_id", req.TraceID)

	attempts := 0
	var last *types.FetchOutcome

	for i := 0; i < len(order); i++ {
		strat := order[i]
		f := e.fetchers.For(strat)
		if f == nil {
			continue
		}
		retries := 0

		for {
			if err := ctx.Err(); err != nil {
				return e.fail(req, types.FailCancelled, attempts, start)
			}
			if !e.cost.Admit(strat) {
				return e.fail(req, types.FailCostExceeded, attempts, start)
			}
			if err := e.limiter.AcquireSlot(ctx, domain); err != nil {
				return e.fail(req, types.FailCancelled, attempts, start)
			}

			outcome := f.Fetch(ctx, req.URL)
			attempts++
			last = outcome

			e.metrics.ObserveFetch(strat, outcome)
			e.cost.RecordFetch(strat, outcome.Elapsed)
			e.limiter.RecordOutcome(domain, outcome)
			e.metrics.SetRateDelay(domain, e.limiter.Delay(domain))
			if outcome.EvidenceHandle != "" {
				e.metrics.EvidenceCaptured()
			}

			if outcome.Success {
				breaker.RecordSuccess()
				e.metrics.SetCircuitState(domain, breaker.State().Gauge())
				e.learner.Record(domain, strat, true, outcome.Elapsed)
				e.profiles.RecordSuccess(domain)
				return e.succeed(ctx, req, fp, strat, outcome, attempts, start)
			}

			breaker.RecordFailure(outcome.Kind, types.CanonicalURL(req.URLString()))
			e.metrics.SetCircuitState(domain, breaker.State().Gauge())
			e.learner.Record(domain, strat, false, outcome.Elapsed)
			log.WarnContext(ctx, "fetch attempt failed",
				"strategy", strat, "kind", outcome.Kind,
				"status", outcome.HTTPStatus, "attempt", attempts)

			if outcome.Kind.Terminal() {
				return e.exhausted(ctx, req, domain, outcome, attempts, start)
			}

			d := retry.Decide(outcome, retries, e.cfg.Fetcher.StrategyTimeout(string(strat)))
			if d.Retry {
				retries++
				if !sleepCtx(ctx, d.Pause) {
					return e.fail(req, types.FailCancelled, attempts, start)
				}
				continue
			}

			// A challenge means the site is actively defending; jump to
			// the heaviest remaining tier instead of stepping through.
			if outcome.Kind == types.FailChallenge && i < len(order)-1 {
				i = len(order) - 2
			}
			break
		}
	}

	if last == nil {
		return e.fail(req, types.FailInternal, attempts, start)
	}
	return e.exhausted(ctx, req, domain, last, attempts, start)
}

// succeed builds, scores, and caches the success result.
func (e *Engine) succeed(ctx context.Context, req *types.Request, fp string, strat types.Strategy, outcome *types.FetchOutcome, attempts int, start time.Time) (*types.ScrapeResult, error) {
	result := &types.ScrapeResult{
		Status:        types.StatusSuccess,
		URL:           req.URLString(),
		FinalURL:      outcome.FinalURL,
		Content:       outcome.Content,
		ContentLength: len(outcome.Content),
		StrategyUsed:  strat,
		Attempts:      attempts,
		Elapsed:       time.Since(start),
		TraceID:       req.TraceID,
		HTTPStatus:    outcome.HTTPStatus,
		RedirectCount: outcome.RedirectCount,
	}
	result.Confidence = e.scorer.Score(result, strat)

	e.cache.Put(fp, result)
	e.metrics.ObserveScrape(types.StatusSuccess, strat)
	e.logger.InfoContext(ctx, "scrape complete",
		"url", req.URLString(), "strategy", strat,
		"attempts", attempts, "confidence", result.Confidence.Overall,
		"size", result.ContentLength)
	return result, nil
}

// exhausted ends a call whose fetches all failed.
func (e *Engine) exhausted(ctx context.Context, req *types.Request, domain string, last *types.FetchOutcome, attempts int, start time.Time) (*types.ScrapeResult, error) {
	kind := last.Kind
	if kind == "" {
		kind = types.FailUnknown
	}
	if ctx.Err() != nil && kind != types.FailTimeout {
		kind = types.FailCancelled
	}
	e.profiles.RecordTerminalFailure(domain)
	e.logger.WarnContext(ctx, "scrape exhausted",
		"url", req.URLString(), "kind", kind, "attempts", attempts)
	return e.fail(req, kind, attempts, start)
}

// fail builds the error result and its paired ScrapeError.
func (e *Engine) fail(req *types.Request, kind types.FailureKind, attempts int, start time.Time) (*types.ScrapeResult, error) {
	result := &types.ScrapeResult{
		Status:      types.StatusError,
		URL:         req.URLString(),
		Attempts:    attempts,
		Elapsed:     time.Since(start),
		FailureKind: kind,
		TraceID:     req.TraceID,
	}
	if kind == types.FailInternal {
		e.metrics.InternalError()
	}
	e.metrics.ObserveScrape(types.StatusError, "")
	return result, types.NewScrapeError(kind, req.URLString(), attempts, req.TraceID)
}

// sleepCtx pauses for d, returning false if the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
