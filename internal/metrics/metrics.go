// Package metrics содержит метрики Prometheus процесса покупки курсов.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Источники подтверждения оплаты.
const (
	SourceClient  = "client"
	SourceWebhook = "webhook"
)

var (
	CheckoutSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursemart_checkout_sessions_total",
			Help: "Number of checkout session requests by outcome",
		},
		[]string{"outcome"},
	)

	PaymentConfirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursemart_payment_confirmations_total",
			Help: "Number of payment confirmations by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	EnrollmentRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursemart_enrollment_repairs_total",
			Help: "Number of enrollment projections re-applied by the repair loop",
		},
		[]string{"outcome"},
	)
)

// Register регистрирует метрики в реестре по умолчанию.
func Register() {
	prometheus.MustRegister(CheckoutSessions, PaymentConfirmations, EnrollmentRepairs)
}
