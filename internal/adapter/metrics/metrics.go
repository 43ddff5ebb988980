package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notification_service"

// Metrics holds all Prometheus metrics for the notification service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	MessagesTotal      *prometheus.CounterVec
	StageFailuresTotal *prometheus.CounterVec
	ProcessingSeconds  prometheus.Histogram
	ReconnectsTotal    *prometheus.CounterVec
	ConsumerState      prometheus.Gauge
	ActiveConnections  prometheus.Gauge
	EmitsTotal         *prometheus.CounterVec
	AuditPurgedTotal   prometheus.Counter
}

// New initializes the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "messages_total",
			Help:      "Total number of broker messages handled by topic and outcome.",
		}, []string{"topic", "status"}), // status: processed, failed, duplicate
		StageFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Total number of messages dropped by the stage that failed.",
		}, []string{"stage"}), // stage: normalize, channel, store, emit, other
		ProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "processing_seconds",
			Help:      "Time spent running one message through the pipeline.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconnectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "reconnects_total",
			Help:      "Total number of broker reconnect attempts by backoff tier.",
		}, []string{"tier"}), // tier: coordinator, retry
		ConsumerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "state",
			Help:      "Current consumer state (0 disconnected, 1 connecting, 2 subscribed, 3 consuming, 4 shutting down).",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "active_connections",
			Help:      "Number of live client connections registered with the hub.",
		}),
		EmitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "emits_total",
			Help:      "Total number of frames pushed to live connections by result.",
		}, []string{"result"}), // result: delivered, dropped, no_listeners
		AuditPurgedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "audit_purged_total",
			Help:      "Total number of audit events removed by the retention sweeper.",
		}),
	}
}

func (m *Metrics) ObserveMessage(topic, status string, seconds float64) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(topic, status).Inc()
	m.ProcessingSeconds.Observe(seconds)
}

func (m *Metrics) StageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailuresTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) Reconnect(tier string) {
	if m == nil {
		return
	}
	m.ReconnectsTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) SetConsumerState(state int) {
	if m == nil {
		return
	}
	m.ConsumerState.Set(float64(state))
}

func (m *Metrics) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.ActiveConnections.Set(float64(n))
}

func (m *Metrics) Emit(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EmitsTotal.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) AuditPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.AuditPurgedTotal.Add(float64(n))
}
