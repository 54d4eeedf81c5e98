package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpErrors        *prometheus.CounterVec
	ticketsCreated    prometheus.Counter
	messagesAppended  *prometheus.CounterVec
	assistantOutcomes *prometheus.CounterVec
	reaperClosed      prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helpdesk_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_http_errors_total",
				Help: "HTTP requests answered with an error, by error code",
			},
			[]string{"method", "path", "code"},
		),
		ticketsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "helpdesk_tickets_created_total",
				Help: "Tickets filed by customers",
			},
		),
		messagesAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_messages_appended_total",
				Help: "Messages stored, by author kind",
			},
			[]string{"author"},
		),
		assistantOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_assistant_outcomes_total",
				Help: "Handoff decisions and assistant results",
			},
			[]string{"outcome"},
		),
		reaperClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "helpdesk_reaper_closed_total",
				Help: "Tickets closed for inactivity",
			},
		),
	}
}

// RecordRequest observes one served HTTP request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts a request rendered as an error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, path, code).Inc()
}

// TicketCreated counts a new ticket.
func (m *Metrics) TicketCreated() {
	if m == nil {
		return
	}
	m.ticketsCreated.Inc()
}

// MessageAppended counts a stored message; author is customer, staff or bot.
func (m *Metrics) MessageAppended(author string) {
	if m == nil {
		return
	}
	m.messagesAppended.WithLabelValues(author).Inc()
}

// AssistantOutcome counts a handoff outcome.
func (m *Metrics) AssistantOutcome(outcome string) {
	if m == nil {
		return
	}
	m.assistantOutcomes.WithLabelValues(outcome).Inc()
}

// ReaperClosed adds the number of tickets a sweep closed.
func (m *Metrics) ReaperClosed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaperClosed.Add(float64(n))
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
