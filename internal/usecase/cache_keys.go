package usecase

// Query cache keys shared by the history reads and the writes that invalidate them.
const (
	pointsHistoryPrefix = "points-history:"
	redemptionsPrefix   = "redemptions:"
)

func PointsHistoryKey(userID string) string { return pointsHistoryPrefix + userID }
func RedemptionsKey(userID string) string   { return redemptionsPrefix + userID }
