package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("smartbudget", reg)

	m.Replies.WithLabelValues("fallback").Inc()
	m.Replies.WithLabelValues("fallback").Inc()
	m.ActiveSessions.Set(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Replies.WithLabelValues("fallback")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "smartbudget_replies_total")
	assert.Contains(t, names, "smartbudget_active_sessions")
}

func TestNopIsIndependent(t *testing.T) {
	a := NewNop()
	b := NewNop()
	a.Errors.WithLabelValues("x").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Errors.WithLabelValues("x")))
}
