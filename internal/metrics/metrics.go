package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	realtimeDelivery *prometheus.CounterVec
	createOutcomes   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slackclone",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slackclone",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		realtimeDelivery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slackclone",
			Name:      "realtime_deliveries_total",
			Help:      "Realtime event deliveries by sink, event and result.",
		}, []string{"sink", "event", "result"}),
		createOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slackclone",
			Name:      "create_outcomes_total",
			Help:      "Create operations by entity and outcome.",
		}, []string{"entity", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.realtimeDelivery,
		m.createOutcomes,
	)
	return m
}

// ObserveRequest has the shape of common.RequestObserver.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveDelivery has the shape of realtime.DeliveryObserver.
func (m *Metrics) ObserveDelivery(sink, event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.realtimeDelivery.WithLabelValues(sink, event, result).Inc()
}

func (m *Metrics) ObserveCreate(entity, outcome string) {
	m.createOutcomes.WithLabelValues(entity, outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
