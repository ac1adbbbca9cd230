package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector using Prometheus metrics, one
// series per protocol via a "protocol" label.
type PrometheusCollector struct {
	connectionsTotal    *prometheus.CounterVec
	connectionsActive   *prometheus.GaugeVec
	tlsConnectionsTotal *prometheus.CounterVec
	compressionTotal    *prometheus.CounterVec
	authAttemptsTotal   *prometheus.CounterVec
	commandsTotal       *prometheus.CounterVec
	commandsIgnored     *prometheus.CounterVec
	commandsHidden      *prometheus.CounterVec
	commandsOverridden  *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fakemaild_connections_total",
			Help: "Total number of connections opened.",
		}, []string{"protocol"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fakemaild_connections_active",
			Help: "Number of currently active connections.",
		}, []string{"protocol"}),
		tlsConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fakemaild_tls_connections_total",
			Help: "Total number of TLS upgrades completed.",
		}, []string{"protocol"}),
		compressionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fakemaild_compression_upgrades_total",
			Help: "Total number of DEFLATE compression upgrades completed.",
		}, []string{"protocol"}),
		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fakemaild_auth_attempts_total",
			Help: "Total number of credential exchanges observed (never validated).",
		}, []string{"protocol", "mechanism", "result"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fakemaild_commands_total",
			Help: "Total number of commands processed.",
		}, []string{"protocol", "command"}),
		commandsIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fakemaild_commands_ignored_total",
			Help: "Total number of commands silently dropped by the ignore-list override layer.",
		}, []string{"protocol", "command"}),
		commandsHidden: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fakemaild_commands_hidden_total",
			Help: "Total number of commands answered with a synthetic unrecognized-command error.",
		}, []string{"protocol", "command"}),
		commandsOverridden: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fakemaild_commands_overridden_total",
			Help: "Total number of commands answered with a scripted raw override.",
		}, []string{"protocol", "command"}),
	}

	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.tlsConnectionsTotal,
		c.compressionTotal,
		c.authAttemptsTotal,
		c.commandsTotal,
		c.commandsIgnored,
		c.commandsHidden,
		c.commandsOverridden,
	)

	return c
}

func (c *PrometheusCollector) ConnectionOpened(protocol string) {
	c.connectionsTotal.WithLabelValues(protocol).Inc()
	c.connectionsActive.WithLabelValues(protocol).Inc()
}

func (c *PrometheusCollector) ConnectionClosed(protocol string) {
	c.connectionsActive.WithLabelValues(protocol).Dec()
}

func (c *PrometheusCollector) TLSConnectionEstablished(protocol string) {
	c.tlsConnectionsTotal.WithLabelValues(protocol).Inc()
}

func (c *PrometheusCollector) CompressionEstablished(protocol string) {
	c.compressionTotal.WithLabelValues(protocol).Inc()
}

func (c *PrometheusCollector) AuthAttempt(protocol, mechanism string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(protocol, mechanism, result).Inc()
}

func (c *PrometheusCollector) CommandProcessed(protocol, command string) {
	c.commandsTotal.WithLabelValues(protocol, command).Inc()
}

func (c *PrometheusCollector) CommandIgnored(protocol, command string) {
	c.commandsIgnored.WithLabelValues(protocol, command).Inc()
}

func (c *PrometheusCollector) CommandHidden(protocol, command string) {
	c.commandsHidden.WithLabelValues(protocol, command).Inc()
}

func (c *PrometheusCollector) CommandOverridden(protocol, command string) {
	c.commandsOverridden.WithLabelValues(protocol, command).Inc()
}
