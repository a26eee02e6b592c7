package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signage-ads/internal/core/port"
)

var _ port.Metrics = (*Metrics)(nil)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	CyclesTotal            *prometheus.CounterVec
	SubscriptionsCompleted prometheus.Counter
	LedgerRetries          prometheus.Counter
	PropagationFailures    *prometheus.CounterVec
	FeedCandidates         *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signage_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "signage_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		}),

		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signage_cycles_total",
			Help: "Run cycles reported by kiosks",
		}, []string{"result"}),

		SubscriptionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "signage_subscriptions_completed_total",
			Help: "Subscriptions that reached their run cycle limit",
		}),

		LedgerRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "signage_ledger_retryable_total",
			Help: "Ledger units that failed to commit and can be retried",
		}),

		PropagationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signage_event_sink_failures_total",
			Help: "Event deliveries that failed, by sink",
		}, []string{"sink"}),

		FeedCandidates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signage_feed_candidates_total",
			Help: "Feed candidates evaluated, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) CycleRecorded(duplicate bool) {
	result := "counted"
	if duplicate {
		result = "duplicate"
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SubscriptionCompleted() { m.SubscriptionsCompleted.Inc() }

func (m *Metrics) LedgerRetryable() { m.LedgerRetries.Inc() }

func (m *Metrics) PropagationFailed(sink string) { m.PropagationFailures.WithLabelValues(sink).Inc() }

func (m *Metrics) EligibilityEvaluated(outcome string, n int) {
	m.FeedCandidates.WithLabelValues(outcome).Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latencies labelled with the chi
// route pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
