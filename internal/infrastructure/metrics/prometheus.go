package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

var _ inventory.Metrics = (*EngineMetrics)(nil)

// EngineMetrics métricas Prometheus del motor de inventario.
type EngineMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	keyWait    prometheus.Histogram
	contention prometheus.Counter
}

// NewEngineMetrics registra las métricas en reg. Con reg nil devuelve un recolector inerte.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stock_ledger",
		Name:      "operations_total",
		Help:      "Operaciones del motor por tipo y resultado.",
	}, []string{"op", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stock_ledger",
		Name:      "operation_duration_seconds",
		Help:      "Duración de las operaciones del motor.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	keyWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stock_ledger",
		Name:      "key_wait_seconds",
		Help:      "Espera hasta obtener los bloqueos de clave.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})
	contention := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stock_ledger",
		Name:      "contention_total",
		Help:      "Operaciones rechazadas por no obtener el bloqueo a tiempo.",
	})
	reg.MustRegister(operations, duration, keyWait, contention)
	return &EngineMetrics{operations: operations, duration: duration, keyWait: keyWait, contention: contention}
}

// ObserveOperation cuenta la operación y registra su duración.
func (m *EngineMetrics) ObserveOperation(op, result string, elapsed time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	op = normalizeLabel(op)
	m.operations.WithLabelValues(op, normalizeLabel(result)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveKeyWait registra la espera por bloqueos.
func (m *EngineMetrics) ObserveKeyWait(elapsed time.Duration) {
	if m == nil || m.keyWait == nil {
		return
	}
	m.keyWait.Observe(elapsed.Seconds())
}

// IncContention cuenta un rechazo por contención.
func (m *EngineMetrics) IncContention() {
	if m == nil || m.contention == nil {
		return
	}
	m.contention.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
