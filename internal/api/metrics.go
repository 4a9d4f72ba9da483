package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduling_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	bookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_bookings_created_total",
		Help: "Reservations created through either entry point.",
	})

	slotConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_slot_conflicts_total",
		Help: "Create/reschedule attempts rejected because the slot was taken.",
	})
)

// MetricsMiddleware records request latency labeled by chi route pattern so
// path parameters do not blow up label cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}
