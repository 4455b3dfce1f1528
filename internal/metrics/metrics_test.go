package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistriesAreIndependent(t *testing.T) {
	a := New()
	b := New()

	a.Signals.WithLabelValues("MES", "rejected", "duplicate").Inc()
	a.DailyPnL.Set(-50)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Signals.WithLabelValues("MES", "rejected", "duplicate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Signals.WithLabelValues("MES", "rejected", "duplicate")))
	assert.Equal(t, -50.0, testutil.ToFloat64(a.DailyPnL))

	families, err := a.Gatherer().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["riskgate_signals_total"])
	assert.True(t, names["riskgate_daily_realized_pnl"])
}
