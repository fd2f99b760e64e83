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

const namespace = "switchbot"

// Result label values.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Collector records reconciliation and HTTP metrics.
type Collector struct {
	registry *prometheus.Registry

	refreshes      *prometheus.CounterVec
	refreshSkipped *prometheus.CounterVec
	pushes         *prometheus.CounterVec
	retries        *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	statusCodes    *prometheus.CounterVec
	offline        *prometheus.GaugeVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New creates a Collector with every metric registered, plus the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Status refreshes by device type, channel and result.",
		}, []string{"type", "channel", "result"}),
		refreshSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_skipped_total",
			Help:      "Refresh ticks skipped while a refresh or push was outstanding.",
		}, []string{"type"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Push cycles by device type, channel and result.",
		}, []string{"type", "channel", "result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_retries_total",
			Help:      "Local radio command retries.",
		}, []string{"type"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_fallbacks_total",
			Help:      "Operations that fell over from the local radio to the cloud.",
		}, []string{"type", "op"}),
		statusCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_status_codes_total",
			Help:      "Cloud status codes by classified recovery action.",
		}, []string{"code", "action"}),
		offline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_offline",
			Help:      "1 while the device is in its offline baseline.",
		}, []string{"device_id"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	c.registry.MustRegister(
		c.refreshes,
		c.refreshSkipped,
		c.pushes,
		c.retries,
		c.fallbacks,
		c.statusCodes,
		c.offline,
		c.requests,
		c.requestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry so callers can add collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

// RefreshDone counts a completed refresh.
func (c *Collector) RefreshDone(deviceType, ch string, err error) {
	c.refreshes.WithLabelValues(deviceType, ch, result(err)).Inc()
}

// RefreshSkipped counts a refresh tick dropped by the skip-while guard.
func (c *Collector) RefreshSkipped(deviceType string) {
	c.refreshSkipped.WithLabelValues(deviceType).Inc()
}

// PushDone counts a completed push cycle.
func (c *Collector) PushDone(deviceType, ch string, err error) {
	c.pushes.WithLabelValues(deviceType, ch, result(err)).Inc()
}

// Retry counts one repeated local command attempt.
func (c *Collector) Retry(deviceType string) {
	c.retries.WithLabelValues(deviceType).Inc()
}

// Fallback counts a fall-over from local to cloud for op ("refresh" or "push").
func (c *Collector) Fallback(deviceType, op string) {
	c.fallbacks.WithLabelValues(deviceType, op).Inc()
}

// StatusCode counts a classified cloud status code.
func (c *Collector) StatusCode(code int, action string) {
	c.statusCodes.WithLabelValues(strconv.Itoa(code), action).Inc()
}

// SetOffline records whether a device sits in its offline baseline.
func (c *Collector) SetOffline(deviceID string, offline bool) {
	v := 0.0
	if offline {
		v = 1
	}
	c.offline.WithLabelValues(deviceID).Set(v)
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		c.requestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
