package inventory

import "time"

// Metrics observa el motor (contadores por operación, espera de bloqueos, contención).
// La implementación Prometheus vive en infrastructure/metrics.
type Metrics interface {
	ObserveOperation(op, result string, elapsed time.Duration)
	ObserveKeyWait(elapsed time.Duration)
	IncContention()
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
func (nopMetrics) ObserveKeyWait(time.Duration)                   {}
func (nopMetrics) IncContention()                                 {}

// NopMetrics Metrics que descarta todo (tests y CLI).
func NopMetrics() Metrics { return nopMetrics{} }

// resultLabel etiqueta de resultado para métricas.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errorCode(err)
}
