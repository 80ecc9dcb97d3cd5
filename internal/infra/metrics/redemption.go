package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(redemptionsTotal, pointsRedeemedTotal, memberQRTotal) }

var redemptionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_redemptions_total",
		Help: "Redemption attempts, by result.",
	},
	[]string{"result"}, // success | insufficient_points | not_found | empty_voucher | error
)

var pointsRedeemedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "loyalty_points_redeemed_total",
		Help: "Points spent on successful redemptions.",
	},
)

var memberQRTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_member_qr_total",
		Help: "Member QR token operations, by op and result.",
	},
	[]string{"op", "result"}, // op: generate | validate
)

func IncRedemption(result string) { redemptionsTotal.WithLabelValues(norm(result)).Inc() }

func AddPointsRedeemed(points int64) {
	if points > 0 {
		pointsRedeemedTotal.Add(float64(points))
	}
}

func IncMemberQR(op, result string) { memberQRTotal.WithLabelValues(norm(op), norm(result)).Inc() }
