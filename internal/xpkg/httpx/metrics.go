package httpx

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "deliveryhub",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deliveryhub",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "deliveryhub",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "deliveryhub",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders placed by customers.",
	})

	OrderTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deliveryhub",
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Order status transitions by target status.",
	}, []string{"status"})

	PayoutTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deliveryhub",
		Subsystem: "payouts",
		Name:      "transitions_total",
		Help:      "Payout status changes by target status.",
	}, []string{"status"})

	AlertsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deliveryhub",
		Subsystem: "alerts",
		Name:      "dispatched_total",
		Help:      "Alerts published by event.",
	}, []string{"event"})

	RealtimeClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "deliveryhub",
		Subsystem: "realtime",
		Name:      "clients",
		Help:      "Connected websocket clients.",
	})

	DriverAssignments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deliveryhub",
		Subsystem: "dispatch",
		Name:      "assignments_total",
		Help:      "Driver assignment attempts by outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		OrdersCreated,
		OrderTransitions,
		PayoutTransitions,
		AlertsDispatched,
		RealtimeClients,
		DriverAssignments,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// MetricsHandler exposes the registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request count and latency per route pattern of mux.
// next is usually mux wrapped in other middleware.
func Instrument(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		_, route := mux.Handler(r)
		next.ServeHTTP(rec, r)

		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}
