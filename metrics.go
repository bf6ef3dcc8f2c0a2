package pika

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the engine. A nil *Metrics is valid
// and records nothing.
//
// Metrics:
//   - pika_encodes_total{format} - encoder invocations
//   - pika_compressions_total{mode,outcome} - finished requests (met, best_effort, failed)
//   - pika_shrink_iterations - dimension-reduction retries per target-size request
//   - pika_output_bytes - size of accepted outputs
//   - pika_saved_bytes_total - bytes saved over the sources
type Metrics struct {
	EncodesTotal      *prometheus.CounterVec
	CompressionsTotal *prometheus.CounterVec
	ShrinkIterations  prometheus.Histogram
	OutputBytes       prometheus.Histogram
	SavedBytesTotal   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EncodesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pika",
			Name:      "encodes_total",
			Help:      "Total number of encoder invocations",
		}, []string{"format"}),
		CompressionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pika",
			Name:      "compressions_total",
			Help:      "Total number of finished compression requests",
		}, []string{"mode", "outcome"}),
		ShrinkIterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pika",
			Name:      "shrink_iterations",
			Help:      "Dimension-reduction retries per target-size request",
			Buckets:   prometheus.LinearBuckets(0, 1, maxShrinkAttempts+1),
		}),
		OutputBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pika",
			Name:      "output_bytes",
			Help:      "Size of accepted compressed outputs in bytes",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
		SavedBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pika",
			Name:      "saved_bytes_total",
			Help:      "Total bytes saved compared to the source images",
		}),
	}
}

func (m *Metrics) encode(f Format) {
	if m == nil {
		return
	}
	m.EncodesTotal.WithLabelValues(f.Extension()).Inc()
}

func (m *Metrics) finished(mode GoalKind, outcome string, r *Result) {
	if m == nil {
		return
	}
	m.CompressionsTotal.WithLabelValues(mode.String(), outcome).Inc()
	if r == nil {
		return
	}
	if mode == GoalTargetSize {
		m.ShrinkIterations.Observe(float64(r.Shrinks))
	}
	m.OutputBytes.Observe(float64(r.Size()))
	if saved := r.OriginalSize - r.Size(); saved > 0 {
		m.SavedBytesTotal.Add(float64(saved))
	}
}
