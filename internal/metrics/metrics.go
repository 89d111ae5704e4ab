package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TargetsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "uploads",
			Name:      "targets_issued_total",
			Help:      "Signed upload URLs handed out",
		},
	)

	RecordsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "uploads",
			Name:      "records_created_total",
			Help:      "Upload records registered, by upload source",
		},
		[]string{"source"},
	)

	BytesRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "uploads",
			Name:      "bytes_registered_total",
			Help:      "Sum of file sizes of registered uploads",
		},
	)

	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "uploads",
			Name:      "verifications_total",
			Help:      "Stored object checks, by resulting status",
		},
		[]string{"result"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stratus",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "route", "status"},
	)
)

// NewRegistry returns a registry holding every collector of the service plus the
// Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		TargetsIssued,
		RecordsCreated,
		BytesRegistered,
		Verifications,
		requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Instrument records request durations labelled by the matched chi route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
