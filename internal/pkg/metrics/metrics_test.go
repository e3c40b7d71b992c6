package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestUseRegistry_IgnoresNil(t *testing.T) {
	before, beforeG := Registerer(), Gatherer()
	UseRegistry(nil)
	require.Equal(t, before, Registerer())
	require.Equal(t, beforeG, Gatherer())
}

func TestAccessorsAreSingletons(t *testing.T) {
	require.Same(t, Sink(), Sink())
	require.Same(t, Pipeline(), Pipeline())
	require.Same(t, Source(), Source())
	require.Same(t, Mirror(), Mirror())

	Mirror().LastHeight.Set(42)
	require.Equal(t, float64(42), testutil.ToFloat64(Mirror().LastHeight))

	Pipeline().CommittedHeight.Set(1001)
	require.Equal(t, float64(1001), testutil.ToFloat64(Pipeline().CommittedHeight))

	Sink().OpsTotal.WithLabelValues("set").Inc()
	require.GreaterOrEqual(t, testutil.ToFloat64(Sink().OpsTotal.WithLabelValues("set")), float64(1))
}
