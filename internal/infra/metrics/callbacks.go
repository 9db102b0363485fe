package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		callbacksTotal,
		authenticityFailuresTotal,
	)
}

var (
	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Inbound provider callbacks, labeled by gateway and result.",
		},
		[]string{"gateway", "result"},
	)

	authenticityFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_authenticity_failures_total",
			Help: "Callbacks rejected because signature/hash verification failed.",
		},
		[]string{"gateway"},
	)
)

func IncCallback(gateway, result string) {
	callbacksTotal.WithLabelValues(norm(gateway), norm(result)).Inc()
}

func IncAuthenticityFailure(gateway string) {
	authenticityFailuresTotal.WithLabelValues(norm(gateway)).Inc()
}
