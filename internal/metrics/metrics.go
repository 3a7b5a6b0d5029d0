// Package metrics exposes Prometheus collectors for dispatched messages and
// outbound adapter calls. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesTotal   *prometheus.CounterVec
	MessageDuration *prometheus.HistogramVec

	AdapterCalls    *prometheus.CounterVec
	AdapterDuration *prometheus.HistogramVec

	SessionsActive prometheus.Gauge
}

// New creates a metrics collector with its own registry, so independent
// instances (one per test) never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backseat_messages_total",
				Help: "Total number of dispatched messages",
			},
			[]string{"action", "outcome"},
		),
		MessageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backseat_message_duration_seconds",
				Help:    "Message handling duration in seconds",
				Buckets: []float64{.001, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"action"},
		),
		AdapterCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backseat_adapter_calls_total",
				Help: "Total number of OCR and inference calls",
			},
			[]string{"adapter", "outcome"},
		),
		AdapterDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backseat_adapter_duration_seconds",
				Help:    "OCR and inference call duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"adapter"},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backseat_sessions_active",
				Help: "Number of live sessions",
			},
		),
	}
}

// ObserveMessage records one dispatched message.
func (m *Metrics) ObserveMessage(action string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(action, outcome(err)).Inc()
	m.MessageDuration.WithLabelValues(action).Observe(d.Seconds())
}

// ObserveAdapter records one outbound OCR or inference call.
func (m *Metrics) ObserveAdapter(adapter string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.AdapterCalls.WithLabelValues(adapter, outcome(err)).Inc()
	m.AdapterDuration.WithLabelValues(adapter).Observe(d.Seconds())
}

// SetSessions sets the live session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
