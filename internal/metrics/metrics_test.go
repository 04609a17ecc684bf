package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.Run("contributions", false)
	r.Run("contributions", true)
	r.Charge("accepted")
	r.Charge("accepted")
	r.Charge("rejected")
	r.Payout("initiated")
	r.PlatformFee(31250)
	r.PlatformFee(0)
	r.WebhookEvent("charge.success", "applied")
	r.ObserveGateway("charge", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("contributions", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("contributions", "fatal")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.chargesTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chargesTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.payoutsTotal.WithLabelValues("initiated")))
	assert.Equal(t, 31250.0, testutil.ToFloat64(r.feesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.webhookTotal.WithLabelValues("charge.success", "applied")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.gatewayDuration))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Run("payouts", false)
		r.Charge("accepted")
		r.Payout("failed")
		r.PlatformFee(10)
		r.WebhookEvent("transfer.success", "applied")
		r.ObserveGateway("transfer", time.Now())
	})
}

func TestHandler(t *testing.T) {
	r := New()
	r.Charge("skipped")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `ajo_charges_total{outcome="skipped"} 1`))
}
