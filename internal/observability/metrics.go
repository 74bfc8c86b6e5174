package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "outbound_shipments"

// knownCarriers bounds the carrier label. Anything else is counted as "other".
var knownCarriers = map[string]struct{}{
	"usps":  {},
	"ups":   {},
	"fedex": {},
	"dhl":   {},
}

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	shipmentsCreatedTotal *prometheus.CounterVec
	eventsPublishedTotal  *prometheus.CounterVec
	trackingUpdatesTotal  *prometheus.CounterVec
	deliveriesTotal       *prometheus.CounterVec
	airtableSyncTotal     *prometheus.CounterVec
	airtableSyncDuration  prometheus.Histogram
	shipmentCacheTotal    *prometheus.CounterVec
	workerInflight        prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		shipmentsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shipments_created_total",
				Help:      "Total number of outbound shipments stored, grouped by carrier.",
			},
			[]string{"carrier"},
		),
		eventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shipment_events_published_total",
				Help:      "Shipment lifecycle events handed to the broker, by event type and result.",
			},
			[]string{"type", "result"},
		),
		trackingUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracking_updates_total",
				Help:      "Tracking update messages processed by the worker, by result.",
			},
			[]string{"result"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracking_deliveries_total",
				Help:      "Tracking queue deliveries by how they were settled.",
			},
			[]string{"outcome"},
		),
		airtableSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "airtable_sync_total",
				Help:      "Shipments pushed to Airtable, by result.",
			},
			[]string{"result"},
		),
		airtableSyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "airtable_request_duration_seconds",
				Help:      "Airtable API request duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		shipmentCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shipment_cache_total",
				Help:      "Shipment cache lookups by result.",
			},
			[]string{"result"},
		),
		workerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_inflight",
				Help:      "Current number of tracking updates being applied.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.shipmentsCreatedTotal,
		m.eventsPublishedTotal,
		m.trackingUpdatesTotal,
		m.deliveriesTotal,
		m.airtableSyncTotal,
		m.airtableSyncDuration,
		m.shipmentCacheTotal,
		m.workerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncShipmentCreated(carrier string) {
	if m == nil {
		return
	}
	m.shipmentsCreatedTotal.WithLabelValues(carrierLabel(carrier)).Inc()
}

func (m *Metrics) IncEventPublished(eventType string, result string) {
	if m == nil {
		return
	}
	m.eventsPublishedTotal.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (m *Metrics) IncTrackingUpdate(result string) {
	if m == nil {
		return
	}
	m.trackingUpdatesTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncDelivery counts how a consumed tracking message was settled.
func (m *Metrics) IncDelivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncAirtableSync(result string) {
	if m == nil {
		return
	}
	m.airtableSyncTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) ObserveAirtableRequest(duration time.Duration) {
	if m == nil {
		return
	}
	m.airtableSyncDuration.Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncCacheResult(result string) {
	if m == nil {
		return
	}
	m.shipmentCacheTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Inc()
}

func (m *Metrics) DecWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func carrierLabel(carrier string) string {
	normalized := strings.ToLower(strings.TrimSpace(carrier))
	if normalized == "" {
		return "unknown"
	}
	if _, ok := knownCarriers[normalized]; ok {
		return normalized
	}
	return "other"
}
