package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersWithoutPanic(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m.Registry)

	m.HostRequests.WithLabelValues("listPulls", "ok").Inc()
	m.CacheHits.Inc()
	m.ProviderCostUSD.WithLabelValues("anthropic").Add(0.002)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
