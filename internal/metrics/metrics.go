package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
)

// Metrics provides observability for the registry, its engine and its
// notification sinks.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Successful operations by op ("create", "transfer")
	Operations *prometheus.CounterVec

	// Failed operations by op and error code
	Failures *prometheus.CounterVec

	// Ownership record writes by kind ("batch", "transfer", "materialized")
	RecordWrites *prometheus.CounterVec

	// Tokens created
	TokensCreated prometheus.Counter

	// Commit latency (journal + apply)
	CommitLatency prometheus.Histogram

	// Commands waiting in the engine queue
	QueueDepthGauge prometheus.Gauge

	// Notification deliveries by sink and outcome ("ok", "error")
	Deliveries *prometheus.CounterVec
}

// New creates a Metrics instance with every collector registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenx_operations_total",
			Help: "Total successful registry operations by operation",
		}, []string{"op"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenx_operation_failures_total",
			Help: "Total failed registry operations by operation and error code",
		}, []string{"op", "code"}),

		RecordWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenx_record_writes_total",
			Help: "Explicit ownership record writes by kind",
		}, []string{"kind"}), // kind: "batch", "transfer", "materialized"

		TokensCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tokenx_tokens_created_total",
			Help: "Total tokens created",
		}),

		CommitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokenx_commit_duration_seconds",
			Help:    "Duration of changeset commit including journal write",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		QueueDepthGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tokenx_engine_queue_depth",
			Help: "Commands waiting in the engine queue",
		}),

		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenx_notification_deliveries_total",
			Help: "Notification deliveries by sink and outcome",
		}, []string{"sink", "outcome"}),
	}
}

// ObserveCommit records a committed changeset.
// Implements registry.Observer.
func (m *Metrics) ObserveCommit(op string, cs *ir.Changeset, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op).Inc()
	m.CommitLatency.Observe(elapsed.Seconds())
	m.TokensCreated.Add(float64(len(cs.Global)))

	for _, w := range cs.Records {
		m.RecordWrites.WithLabelValues(writeKind(op, w)).Inc()
	}
}

// ObserveFailure records a failed operation.
// Implements registry.Observer.
func (m *Metrics) ObserveFailure(op string, code registry.ErrorCode) {
	if m == nil {
		return
	}
	if code == "" {
		code = "UNKNOWN"
	}
	m.Failures.WithLabelValues(op, string(code)).Inc()
}

// QueueDepth records the engine queue depth.
// Implements engine.DepthObserver.
func (m *Metrics) QueueDepth(n int) {
	if m != nil {
		m.QueueDepthGauge.Set(float64(n))
	}
}

// ObserveDelivery records one notification delivery attempt.
func (m *Metrics) ObserveDelivery(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Deliveries.WithLabelValues(sink, outcome).Inc()
}

func writeKind(op string, w ir.RecordWrite) string {
	switch {
	case w.Materialized:
		return "materialized"
	case op == "create":
		return "batch"
	default:
		return "transfer"
	}
}

// WriteTextfile writes every metric gathered from g to path in the
// Prometheus text format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
