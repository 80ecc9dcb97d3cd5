//go:build !integration

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizesLabels(t *testing.T) {
	before := testutil.ToFloat64(redemptionsTotal.WithLabelValues("success"))
	IncRedemption("  SUCCESS ")
	assert.Equal(t, before+1, testutil.ToFloat64(redemptionsTotal.WithLabelValues("success")))
}

func TestAddPointsRedeemedIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(pointsRedeemedTotal)
	AddPointsRedeemed(0)
	AddPointsRedeemed(-5)
	AddPointsRedeemed(300)
	assert.Equal(t, before+300, testutil.ToFloat64(pointsRedeemedTotal))
}

func TestSetDBPoolStats(t *testing.T) {
	SetDBPoolStats(10, 7, 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(dbPoolStats.WithLabelValues("in_use")))
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	MustRegister()
	IncThrottled("sign_in")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `loyalty_throttled_total{scope="sign_in"}`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
