package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache, order and settlement instrumentation.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheLookups       *prometheus.CounterVec
	ordersTotal        *prometheus.CounterVec
	gatewayDuration    prometheus.Observer
	settlementsTotal   *prometheus.CounterVec
	settlementDuration prometheus.Observer
	reconciliations    prometheus.Counter
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_lookups_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	ordersTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_issued_total",
		Help: "Order issuance attempts by outcome",
	}, []string{"outcome"})

	gatewayDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_order_duration_seconds",
		Help:    "Latency of gateway order creation",
		Buckets: prometheus.DefBuckets,
	})

	settlementsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Settlement attempts by outcome",
	}, []string{"outcome"})

	settlementDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of the settlement pipeline",
		Buckets: prometheus.DefBuckets,
	})

	reconciliations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_tickets_enqueued_total",
		Help: "Verified payments whose enrollment commit failed",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		ordersTotal, gatewayDuration, settlementsTotal, settlementDuration, reconciliations, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheLookups:       cacheLookups,
		ordersTotal:        ordersTotal,
		gatewayDuration:    gatewayDuration,
		settlementsTotal:   settlementsTotal,
		settlementDuration: settlementDuration,
		reconciliations:    reconciliations,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a catalog cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordOrder counts an order issuance outcome such as "issued" or "gateway_unavailable".
func (m *MetricsService) RecordOrder(outcome string) {
	if m == nil {
		return
	}
	m.ordersTotal.WithLabelValues(outcome).Inc()
}

// ObserveGatewayCall records how long the gateway took to mint an order.
func (m *MetricsService) ObserveGatewayCall(duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.Observe(duration.Seconds())
}

// RecordSettlement counts a settlement outcome and its duration.
func (m *MetricsService) RecordSettlement(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(outcome).Inc()
	m.settlementDuration.Observe(duration.Seconds())
}

// RecordReconciliation counts a reconciliation ticket handed to the queue.
func (m *MetricsService) RecordReconciliation() {
	if m == nil {
		return
	}
	m.reconciliations.Inc()
}
