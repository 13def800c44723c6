package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VisitorTransitions counts lifecycle events by outcome (ok, rejected, error).
	VisitorTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_visitor_transitions_total",
		Help: "Visitor lifecycle events by event and outcome",
	}, []string{"event", "outcome"})

	// VisitorAlerts counts operational alerts raised by racing writes.
	VisitorAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_visitor_alerts_total",
		Help: "Visitor records left in an inconsistent state, by kind",
	}, []string{"kind"})

	// Broadcasts counts realtime fanout attempts by event and outcome.
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_broadcasts_total",
		Help: "Realtime broadcasts by event and outcome",
	}, []string{"event", "outcome"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnections is the gauge of open websocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// GateCommands counts barrier commands published over MQTT.
	GateCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_gate_commands_total",
		Help: "Gate barrier commands by command and outcome",
	}, []string{"command", "outcome"})
)
