package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(authEventsTotal, signInTotal, profileFetchErrorsTotal, welcomeBonusTotal, sessionRefreshTotal)
}

var authEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_auth_events_total",
		Help: "Session change notifications delivered, by event.",
	},
	[]string{"event"},
)

var signInTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_sign_in_total",
		Help: "Password sign-in and sign-up attempts, by result.",
	},
	[]string{"result"}, // success | failure | signup
)

var profileFetchErrorsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "loyalty_profile_fetch_errors_total",
		Help: "Profile reads that failed; the cached profile was kept.",
	},
)

var welcomeBonusTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_welcome_bonus_total",
		Help: "Welcome bonus ledger appends, by result.",
	},
	[]string{"result"}, // awarded | error
)

var sessionRefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_session_refresh_total",
		Help: "Background access-token refreshes, by result.",
	},
	[]string{"result"},
)

func IncAuthEvent(event string)       { authEventsTotal.WithLabelValues(norm(event)).Inc() }
func IncSignIn(result string)         { signInTotal.WithLabelValues(norm(result)).Inc() }
func IncProfileFetchError()           { profileFetchErrorsTotal.Inc() }
func IncWelcomeBonus(result string)   { welcomeBonusTotal.WithLabelValues(norm(result)).Inc() }
func IncSessionRefresh(result string) { sessionRefreshTotal.WithLabelValues(norm(result)).Inc() }
