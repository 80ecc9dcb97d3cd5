package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(throttledTotal, redeemLockConflictsTotal) }

var throttledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_throttled_total",
		Help: "Attempts rejected by the attempt limiter, by scope.",
	},
	[]string{"scope"},
)

var redeemLockConflictsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "loyalty_redeem_lock_conflicts_total",
		Help: "Redemptions rejected because the member already had one in flight.",
	},
)

func IncThrottled(scope string) { throttledTotal.WithLabelValues(norm(scope)).Inc() }
func IncRedeemLockConflict()    { redeemLockConflictsTotal.Inc() }
