package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifis_fetch_requests_total",
			Help: "Page fetch attempts by outcome",
		},
		[]string{"domain", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verifis_fetch_duration_seconds",
			Help:    "Duration of single page fetch attempts in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifis_fetch_bytes_total",
			Help: "Total page bytes downloaded",
		},
		[]string{"domain"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verifis_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifis_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifis_provider_requests_total",
			Help: "Search provider calls by outcome (results, empty, error)",
		},
		[]string{"provider", "outcome"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifis_extractions_total",
			Help: "Content extractions by resolving method",
		},
		[]string{"method"},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifis_pipeline_runs_total",
			Help: "Completed pipeline runs",
		},
		[]string{"mode", "provider"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verifis_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"mode"},
	)
)

// Fetch outcome labels.
const (
	StatusError      = "error"
	StatusChallenged = "challenged"
)

// RecordFetch records one fetch attempt. status is the HTTP status code or
// one of the Status* labels.
func RecordFetch(domain, status string, bytes int, d time.Duration) {
	FetchRequestsTotal.WithLabelValues(domain, status).Inc()
	FetchDuration.WithLabelValues(domain).Observe(d.Seconds())
	if bytes > 0 {
		FetchBytesTotal.WithLabelValues(domain).Add(float64(bytes))
	}
}

// RecordCache records a cache hit or miss.
func RecordCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordProvider records the outcome of a single provider call.
func RecordProvider(provider string, results int, err error) {
	outcome := "results"
	switch {
	case err != nil:
		outcome = "error"
	case results == 0:
		outcome = "empty"
	}
	ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordRun records a finished pipeline run. provider is empty when no
// provider produced results.
func RecordRun(mode, provider string, d time.Duration) {
	if provider == "" {
		provider = "none"
	}
	PipelineRunsTotal.WithLabelValues(mode, provider).Inc()
	PipelineDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// Handler exposes the default registry for mounting on another mux.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
