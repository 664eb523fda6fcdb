package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		ledgerFallbackMatchesTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Ledger writes by resulting status (pending/paid/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Net value of confirmed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	ledgerFallbackMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_fallback_matches_total",
			Help: "Fallback lookups by result (processor_ref/attributes/ambiguous/miss).",
		},
		[]string{"result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount decimal.Decimal) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(amount.InexactFloat64())
}

func IncFallbackMatch(result string) {
	ledgerFallbackMatchesTotal.WithLabelValues(norm(result)).Inc()
}
