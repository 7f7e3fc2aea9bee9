package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects engine counters on its own registry. It implements
// device.Observer and engine.Observer.
type Metrics struct {
	registry *prometheus.Registry

	commandsApplied  *prometheus.CounterVec
	commandsRejected *prometheus.CounterVec
	opsCancelled     *prometheus.CounterVec
	published        *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	messagesRouted   *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	devices          prometheus.Gauge
}

// NewMetrics registers the rcp_* collectors plus the Go and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commandsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcp_commands_applied_total",
			Help: "Commands applied by device actors.",
		}, []string{"device_id", "command"}),
		commandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcp_commands_rejected_total",
			Help: "Commands dropped by the reconciler or a class precondition.",
		}, []string{"device_id", "command", "reason"}),
		opsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcp_operations_cancelled_total",
			Help: "Timed operations cancelled before they settled.",
		}, []string{"device_id", "phase"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcp_status_published_total",
			Help: "Status snapshots delivered to the transport.",
		}, []string{"device_id"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcp_status_publish_failures_total",
			Help: "Status snapshots the transport failed to deliver.",
		}, []string{"device_id"}),
		messagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcp_messages_routed_total",
			Help: "Inbound messages routed to a device.",
		}, []string{"command"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcp_messages_dropped_total",
			Help: "Inbound messages dropped before reaching a device.",
		}, []string{"reason"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rcp_devices",
			Help: "Device actors currently running.",
		}),
	}

	m.registry.MustRegister(
		m.commandsApplied,
		m.commandsRejected,
		m.opsCancelled,
		m.published,
		m.publishFailures,
		m.messagesRouted,
		m.messagesDropped,
		m.devices,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetDevices records the number of running actors.
func (m *Metrics) SetDevices(n int) {
	m.devices.Set(float64(n))
}

func (m *Metrics) CommandApplied(deviceID, command string) {
	m.commandsApplied.WithLabelValues(deviceID, command).Inc()
}

func (m *Metrics) CommandRejected(deviceID, command, reason string) {
	m.commandsRejected.WithLabelValues(deviceID, command, reason).Inc()
}

func (m *Metrics) OperationCancelled(deviceID, phase string) {
	m.opsCancelled.WithLabelValues(deviceID, phase).Inc()
}

func (m *Metrics) StatusPublished(deviceID string) {
	m.published.WithLabelValues(deviceID).Inc()
}

func (m *Metrics) PublishFailed(deviceID string) {
	m.publishFailures.WithLabelValues(deviceID).Inc()
}

func (m *Metrics) MessageRouted(command string) {
	m.messagesRouted.WithLabelValues(command).Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	m.messagesDropped.WithLabelValues(reason).Inc()
}
