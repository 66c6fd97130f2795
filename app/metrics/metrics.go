package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"

	CallbackProcessed = "processed"
	CallbackRejected  = "rejected"
	CallbackUnmatched = "unmatched"
	CallbackAmbiguous = "ambiguous"
)

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatewayRequests   *prometheus.CounterVec
	callbacks         *prometheus.CounterVec
	commands          *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_payments_gateway_requests_total",
			Help: "Outbound Instamojo calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_payments_callbacks_total",
			Help: "Gateway callbacks received by source and result.",
		}, []string{"source", "result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_payments_bot_commands_total",
			Help: "Chat commands handled by command and result.",
		}, []string{"command", "result"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_payments_status_transitions_total",
			Help: "Payment status changes by origin and new status.",
		}, []string{"origin", "status"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_payments_events_published_total",
			Help: "Status-change events handed to the broker by outcome.",
		}, []string{"outcome"}),
	}

	registerer.MustRegister(
		m.gatewayRequests,
		m.callbacks,
		m.commands,
		m.statusTransitions,
		m.eventsPublished,
	)

	return m
}

// GatewayRequest counts a gateway call. outcome is OutcomeSuccess or the failure kind.
func (m *Metrics) GatewayRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) Callback(source, result string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(source, result).Inc()
}

func (m *Metrics) Command(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) StatusTransition(origin, status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(origin, status).Inc()
}

func (m *Metrics) EventPublished(outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(outcome).Inc()
}
