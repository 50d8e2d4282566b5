package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fieldbooking"

var (
	once sync.Once

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Requested booking transitions by action and result code.",
		},
		[]string{"action", "code"},
	)

	conflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Booking requests rejected because the slot was taken.",
		},
	)

	paymentGateRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_gate_rejections_total",
			Help:      "Confirmations refused because payment was not completed.",
		},
	)

	paymentsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Payment status writes by method and resulting status.",
		},
		[]string{"method", "status"},
	)

	autoCompleteRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autocomplete_runs_total",
			Help:      "Auto-completion runs by result.",
		},
		[]string{"result"},
	)

	autoCompleteBookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autocomplete_bookings_total",
			Help:      "Auto-completion candidates by outcome.",
		},
		[]string{"outcome"},
	)

	autoCompleteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "autocomplete_run_duration_seconds",
			Help:      "Duration of auto-completion runs.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	kafkaPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_events_published_total",
			Help:      "Transition events forwarded to Kafka by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			transitions,
			conflicts,
			paymentGateRejections,
			paymentsRecorded,
			autoCompleteRuns,
			autoCompleteBookings,
			autoCompleteDuration,
			kafkaPublished,
		)
	})
}

func IncTransition(action, code string) {
	transitions.WithLabelValues(action, code).Inc()
}

func IncConflict() {
	conflicts.Inc()
}

func IncPaymentGateRejection() {
	paymentGateRejections.Inc()
}

func IncPaymentRecorded(method, status string) {
	paymentsRecorded.WithLabelValues(method, status).Inc()
}

func IncAutoCompleteRun(result string) {
	autoCompleteRuns.WithLabelValues(result).Inc()
}

func AddAutoCompleteBookings(outcome string, n int) {
	if n <= 0 {
		return
	}
	autoCompleteBookings.WithLabelValues(outcome).Add(float64(n))
}

func ObserveAutoCompleteDuration(d time.Duration) {
	autoCompleteDuration.Observe(d.Seconds())
}

func IncEventPublished(result string) {
	kafkaPublished.WithLabelValues(result).Inc()
}
