package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reconciliation flow. All methods are safe to call on a
// nil *Metrics, which records nothing.
type Metrics struct {
	// Successful submissions by decision table case
	IdentifyRequests *prometheus.CounterVec

	// Failed submissions by error kind
	IdentifyErrors *prometheus.CounterVec

	// Latency of successful submissions
	IdentifyLatency prometheus.Histogram

	// Rows inserted by link precedence
	ContactsCreated *prometheus.CounterVec

	// Primaries demoted into another identity
	Merges prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IdentifyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identify_requests_total",
			Help: "Total number of reconciled submissions by decision case",
		}, []string{"case"}),

		IdentifyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identify_errors_total",
			Help: "Total number of failed submissions by error kind",
		}, []string{"kind"}), // kind: "validation", "not_found", "store", "unknown"

		IdentifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "identify_duration_seconds",
			Help:    "Duration of a reconciliation including lookups and writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ContactsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contacts_created_total",
			Help: "Total number of contacts created by link precedence",
		}, []string{"precedence"}),

		Merges: factory.NewCounter(prometheus.CounterOpts{
			Name: "identity_merges_total",
			Help: "Total number of primaries demoted into an older identity",
		}),
	}
}

// ObserveIdentify records a successful submission.
func (m *Metrics) ObserveIdentify(decision string, d time.Duration) {
	if m != nil {
		m.IdentifyRequests.WithLabelValues(decision).Inc()
		m.IdentifyLatency.Observe(d.Seconds())
	}
}

// IncrementError records a failed submission.
func (m *Metrics) IncrementError(kind string) {
	if m != nil {
		m.IdentifyErrors.WithLabelValues(kind).Inc()
	}
}

// IncrementContactsCreated records an inserted contact.
func (m *Metrics) IncrementContactsCreated(precedence string) {
	if m != nil {
		m.ContactsCreated.WithLabelValues(precedence).Inc()
	}
}

// IncrementMerges records a demoted primary.
func (m *Metrics) IncrementMerges() {
	if m != nil {
		m.Merges.Inc()
	}
}
