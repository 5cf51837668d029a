package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CustomersRegistered.Inc()
	m.DuplicateEmails.Inc()
	m.DuplicateEmails.Inc()
	m.ObserveOperation("register", time.Now())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CustomersRegistered))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DuplicateEmails))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "customers_operation_duration_seconds")

	// a second registry gets its own collectors
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
