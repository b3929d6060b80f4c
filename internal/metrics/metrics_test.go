package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewSync_RegistersAndCounts(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s := NewSync(reg)

	s.Passes.Inc()
	s.Promoted.Add(3)
	s.Pending.Set(2)

	require.Equal(t, 1.0, testutil.ToFloat64(s.Passes))
	require.Equal(t, 3.0, testutil.ToFloat64(s.Promoted))
	require.Equal(t, 2.0, testutil.ToFloat64(s.Pending))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 6, n)
}

func TestNewSync_NilRegistry(t *testing.T) {
	t.Parallel()
	s := NewSync(nil)
	s.Rejected.Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(s.Rejected))
}
