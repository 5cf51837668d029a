package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the customer module.
// Tracks lifecycle counts and per-operation durations.
type Metrics struct {
	CustomersRegistered prometheus.Counter
	CustomersUpdated    prometheus.Counter
	CustomersDeleted    prometheus.Counter
	NoOpUpdates         prometheus.Counter
	DuplicateEmails     prometheus.Counter
	OperationDuration   *prometheus.HistogramVec
}

// New creates the customer metrics and registers them on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CustomersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "customers_registered_total",
			Help: "Total number of customers registered",
		}),
		CustomersUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "customers_updated_total",
			Help: "Total number of customer updates that changed at least one field",
		}),
		CustomersDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "customers_deleted_total",
			Help: "Total number of customers deleted",
		}),
		NoOpUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "customers_noop_updates_total",
			Help: "Total number of updates that matched the stored record and were skipped",
		}),
		DuplicateEmails: factory.NewCounter(prometheus.CounterOpts{
			Name: "customers_duplicate_email_rejections_total",
			Help: "Total number of writes rejected because the email was already taken",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "customers_operation_duration_seconds",
			Help:    "Duration of customer directory operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// ObserveOperation records the duration of op.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
