package pika

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.encode(WebP)
		m.finished(GoalQuality, "met", &Result{})
	})
}

func TestMetricsFinished(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.encode(JPEG)
	m.encode(JPEG)
	m.encode(WebP)
	assert.InDelta(t, 2, testutil.ToFloat64(m.EncodesTotal.WithLabelValues("jpg")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EncodesTotal.WithLabelValues("webp")), 0)

	m.finished(GoalTargetSize, "best_effort", &Result{
		Attempt:      Attempt{Blob: &Blob{Data: make([]byte, 300)}},
		OriginalSize: 1000,
		Shrinks:      4,
	})
	m.finished(GoalQuality, "met", &Result{
		Attempt:      Attempt{Blob: &Blob{Data: make([]byte, 2000)}},
		OriginalSize: 1000,
	})
	m.finished(GoalQuality, "failed", nil)

	assert.InDelta(t, 1, testutil.ToFloat64(m.CompressionsTotal.WithLabelValues("targetSize", "best_effort")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CompressionsTotal.WithLabelValues("quality", "met")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CompressionsTotal.WithLabelValues("quality", "failed")), 0)
	assert.InDelta(t, 700, testutil.ToFloat64(m.SavedBytesTotal), 0, "larger outputs save nothing")
}

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.encode(JPEG)
	m.finished(GoalTargetSize, "met", &Result{Attempt: Attempt{Blob: &Blob{Data: []byte{1}}}})

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
}
