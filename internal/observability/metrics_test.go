package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMovementCounters(t *testing.T) {
	m := NewMetrics()

	m.MovementPosted("RECEIPT")
	m.MovementPosted("RECEIPT")
	m.MovementPosted("ISSUE")
	m.MovementRejected("insufficient_stock")
	m.TransferCompleted()

	require.InDelta(t, 2, testutil.ToFloat64(m.posted.WithLabelValues("RECEIPT")), 0.001)
	require.InDelta(t, 1, testutil.ToFloat64(m.posted.WithLabelValues("ISSUE")), 0.001)
	require.InDelta(t, 1, testutil.ToFloat64(m.rejected.WithLabelValues("insufficient_stock")), 0.001)
	require.InDelta(t, 1, testutil.ToFloat64(m.transfers), 0.001)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.MovementPosted("RECEIPT")
	m.MovementRejected("validation")
	m.TransferCompleted()
	require.NotNil(t, m.Handler())
}
