package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "connections",
		Help:      "Open sync channel connections",
	}, []string{"transport"})

	syncMessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "messages_sent_total",
		Help:      "Sync messages written to connections",
	}, []string{"event"})

	syncMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "messages_dropped_total",
		Help:      "Sync messages dropped because a connection queue was full",
	}, []string{"event"})

	clientDrift = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "drift_seconds",
		Help:      "Playback position minus live target per tile",
	}, []string{"tile"})

	clientCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "corrections_total",
		Help:      "Drift corrections applied by zone",
	}, []string{"zone"})
)

// SyncConnectionOpened increments the open connection gauge.
func SyncConnectionOpened(transport string) {
	syncConnections.WithLabelValues(transport).Inc()
}

// SyncConnectionClosed decrements the open connection gauge.
func SyncConnectionClosed(transport string) {
	syncConnections.WithLabelValues(transport).Dec()
}

// SyncMessageSent counts a message written to a connection.
func SyncMessageSent(event string) {
	syncMessagesSent.WithLabelValues(event).Inc()
}

// SyncMessageDropped counts a message dropped on a full queue.
func SyncMessageDropped(event string) {
	syncMessagesDropped.WithLabelValues(event).Inc()
}

// SetClientDrift records the latest drift for a tile.
func SetClientDrift(tile int, drift float64) {
	clientDrift.WithLabelValues(label(tile)).Set(drift)
}

// ClientCorrection counts a correction pass outcome.
func ClientCorrection(zone string) {
	clientCorrections.WithLabelValues(zone).Inc()
}
