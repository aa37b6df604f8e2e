// Package observability provides the Prometheus metrics fabric and the raw
// fetch-observation ring that backs latency telemetry.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urwalabs/urwa/internal/types"
)

// Metrics owns every instrument the core emits. Construct one per process
// (or per test) with its own registry; no ambient globals.
type Metrics struct {
	registry *prometheus.Registry

	scrapeTotal    *prometheus.CounterVec
	scrapeDuration *prometheus.HistogramVec
	circuitState   *prometheus.GaugeVec
	rateDelay      *prometheus.GaugeVec
	cacheHits      prometheus.Counter
	evidenceTotal  prometheus.Counter
	internalErrors prometheus.Counter

	observations *ObservationRing
	logger       *slog.Logger
}

// NewMetrics creates a Metrics instance with a fresh registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		scrapeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "urwa_scrape_total",
			Help: "Scrape calls by terminal status and strategy used.",
		}, []string{"status", "strategy"}),
		scrapeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "urwa_scrape_duration_seconds",
			Help:    "Fetch attempt duration by strategy.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"strategy"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "urwa_circuit_state",
			Help: "Circuit state per domain (0 closed, 1 half-open, 2 open).",
		}, []string{"domain"}),
		rateDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "urwa_rate_delay_seconds",
			Help: "Current adaptive delay per domain.",
		}, []string{"domain"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urwa_cache_hits_total",
			Help: "Result cache hits.",
		}),
		evidenceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urwa_evidence_captured_total",
			Help: "Evidence records captured.",
		}),
		internalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urwa_internal_errors_total",
			Help: "Unexpected internal errors.",
		}),
		observations: NewObservationRing(1024),
		logger:       logger.With("component", "metrics"),
	}
	reg.MustRegister(
		m.scrapeTotal, m.scrapeDuration, m.circuitState, m.rateDelay,
		m.cacheHits, m.evidenceTotal, m.internalErrors,
	)
	return m
}

// ObserveFetch records one fetch attempt.
func (m *Metrics) ObserveFetch(strategy types.Strategy, outcome *types.FetchOutcome) {
	m.scrapeDuration.WithLabelValues(string(strategy)).Observe(outcome.Elapsed.Seconds())
	m.observations.Add(Observation{
		Strategy: strategy,
		Elapsed:  outcome.Elapsed,
		Success:  outcome.Success,
		At:       time.Now(),
	})
}

// ObserveScrape records the terminal status of a scrape call.
func (m *Metrics) ObserveScrape(status types.ResultStatus, strategy types.Strategy) {
	m.scrapeTotal.WithLabelValues(string(status), string(strategy)).Inc()
}

// SetCircuitState exposes a domain's breaker state as a gauge.
func (m *Metrics) SetCircuitState(domain string, state float64) {
	m.circuitState.WithLabelValues(domain).Set(state)
}

// SetRateDelay exposes a domain's current pacing delay.
func (m *Metrics) SetRateDelay(domain string, delay time.Duration) {
	m.rateDelay.WithLabelValues(domain).Set(delay.Seconds())
}

// CacheHit increments the cache hit counter.
func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

// EvidenceCaptured increments the evidence counter.
func (m *Metrics) EvidenceCaptured() { m.evidenceTotal.Inc() }

// InternalError increments the global internal error counter.
func (m *Metrics) InternalError() { m.internalErrors.Inc() }

// Observations returns the raw fetch observation ring.
func (m *Metrics) Observations() *ObservationRing { return m.observations }

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics and /healthz on the given port.
func (m *Metrics) StartServer(port int, path string, healthy func() bool) {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthy != nil && !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "degraded")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}
