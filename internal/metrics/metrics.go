// Package metrics provides Prometheus instrumentation for the reputation engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LedgerEntriesTotal counts ledger entries appended, by exit reason and portfolio type.
	LedgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_ledger_entries_total",
		Help: "Total number of ledger entries recorded",
	}, []string{"exit_reason", "portfolio_type"})

	// LedgerEntriesDeleted counts administrative ledger deletions.
	LedgerEntriesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reputation_ledger_entries_deleted_total",
		Help: "Ledger entries removed by administrative deletion",
	})

	// CloseLatency tracks end-to-end close latency (ledger write + recompute).
	CloseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reputation_close_latency_seconds",
		Help:    "Position close latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RecomputeTotal counts summary recomputes by result (ok, empty, error).
	RecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_summary_recompute_total",
		Help: "Summary recomputes by result",
	}, []string{"result"})

	// RecomputeLedgerSize observes the number of entries read per recompute.
	RecomputeLedgerSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reputation_recompute_ledger_entries",
		Help:    "Ledger entries aggregated per recompute",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// RankQueriesTotal counts ranking reads (leaderboard, rank).
	RankQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_rank_queries_total",
		Help: "Ranking queries served",
	}, []string{"kind"})

	// ReconcileUsersTotal counts users processed by reconciliation sweeps.
	ReconcileUsersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_reconcile_users_total",
		Help: "Users recomputed by reconciliation sweeps",
	}, []string{"result"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reputation_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps user IDs out of the label set.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
