package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		intentsInitiatedTotal,
		intentsResolvedTotal,
		creditsTotal,
		creditedAmountTotal,
	)
}

var (
	intentsInitiatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_initiated_total",
			Help: "Payment intents created, labeled by gateway and target type.",
		},
		[]string{"gateway", "target"},
	)

	intentsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_resolved_total",
			Help: "Intents reaching a terminal state (approved/rejected/failed).",
		},
		[]string{"state"},
	)

	creditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_credits_total",
			Help: "Crediting actions performed, labeled by target type.",
		},
		[]string{"target"},
	)

	creditedAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_credited_amount_total",
			Help: "Total credited monetary value in minor units, labeled by gateway.",
		},
		[]string{"gateway"},
	)
)

func IncIntentInitiated(gateway, target string) {
	intentsInitiatedTotal.WithLabelValues(norm(gateway), norm(target)).Inc()
}

func IncIntentResolved(state string) {
	intentsResolvedTotal.WithLabelValues(norm(state)).Inc()
}

func IncCredit(target string) {
	creditsTotal.WithLabelValues(norm(target)).Inc()
}

func AddCreditedAmount(gateway string, amount int64) {
	creditedAmountTotal.WithLabelValues(norm(gateway)).Add(float64(amount))
}
