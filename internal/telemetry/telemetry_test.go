package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMetricsRegistersAllInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.OOMTotal.Inc()
	m.SpansGrown.WithLabelValues("3").Inc()
	m.SpansReclaimed.WithLabelValues("3").Inc()
	m.RefillTotal.Inc()
	m.DrainTotal.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestDefaultIsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	require.Same(t, a, b)
	require.NotNil(t, a.Log)
}

func TestTelemetryAcceptsCustomLogger(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := &Telemetry{
		Log:     zap.NewNop().Sugar(),
		Metrics: NewMetrics(reg),
	}
	require.NotPanics(t, func() {
		tel.Log.Infow("test event", "key", "value")
	})
}
