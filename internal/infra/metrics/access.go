package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpiredTotal,
		accessDecisionsTotal,
		membershipAPIErrorsTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of ledger rows expired by the expiry sweep.",
		},
	)

	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Membership decisions by trigger (join_request/new_member/sweep) and decision.",
		},
		[]string{"trigger", "decision"},
	)

	membershipAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_api_errors_total",
			Help: "Failed chat platform membership calls by operation.",
		},
		[]string{"op"},
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncAccessDecision(trigger, decision string) {
	accessDecisionsTotal.WithLabelValues(norm(trigger), norm(decision)).Inc()
}

func IncMembershipAPIError(op string) {
	membershipAPIErrorsTotal.WithLabelValues(norm(op)).Inc()
}
