package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CounterVec(t *testing.T) {
	m := NewMetrics("test_service").(*Metrics)
	m.RegisterCounterVec("requests_total", "Requests by operation", []string{"operation", "outcome"})

	m.IncCounterVec("requests_total", "login", "success")
	m.IncCounterVec("requests_total", "login", "success")
	m.IncCounterVec("requests_total", "login", "invalid_credentials")

	// unregistered names are ignored
	m.IncCounterVec("missing", "a")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.counterVecs["requests_total"].WithLabelValues("login", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.counterVecs["requests_total"].WithLabelValues("login", "invalid_credentials")))

	families, err := m.GetRegistry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{"test_service_requests_total"}, names)
}

func TestMetrics_HistogramVec(t *testing.T) {
	m := NewMetrics("svc").(*Metrics)
	m.RegisterHistogramVec("request_duration_seconds", "Duration", []float64{0.1, 1}, []string{"operation"})

	m.ObserveHistogramVec("request_duration_seconds", 0.05, "register")
	m.ObserveHistogramVec("request_duration_seconds", 0.5, "register")
	m.ObserveHistogramVec("missing", 1, "register")

	assert.Equal(t, 1, testutil.CollectAndCount(m.histogramVecs["request_duration_seconds"]))
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	m := NewMetrics("svc")
	m.RegisterCounterVec("dup_total", "x", []string{"operation"})
	assert.Panics(t, func() { m.RegisterCounterVec("dup_total", "x", []string{"operation"}) })
}
