package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordFit("elasticity", "reliable")
	r.RecordFit("elasticity", "reliable")
	r.RecordFit("elasticity", "low_sample")
	r.RecordScenario("completed", 3)
	r.RecordDiagnostic("low_sample")
	r.RecordPublish("kafka", nil)
	r.RecordPublish("kafka", errors.New("broker down"))
	r.SetElasticity("COLA-2", -2.4)
	r.ObserveStage("estimate", 120*time.Millisecond)
	r.ObserveHTTP("/api/scenarios", "POST", "201", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fits.WithLabelValues("elasticity", "reliable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fits.WithLabelValues("elasticity", "low_sample")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scenarios.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.published.WithLabelValues("kafka", "error")))
	assert.Equal(t, -2.4, testutil.ToFloat64(r.elasticity.WithLabelValues("COLA-2")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordFit("forecast", "additive")
		r.RecordScenario("partial", 0)
		r.RecordPublish("webhook", nil)
		r.ObserveHTTP("/health", "GET", "200", time.Millisecond)
	})
}
