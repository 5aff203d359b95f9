package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Notification(10*time.Millisecond, true)
	m.Notification(20*time.Millisecond, false)
	m.Notification(5*time.Millisecond, false)
	m.Recharge(30_000_000_000, true)
	m.Settlement("resolved")
	m.OutcomeReceived("won")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rechargeRequests.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 3e10, testutil.ToFloat64(m.rechargeUnitsWanted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settlements.WithLabelValues("resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomesReceived.WithLabelValues("won")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Notification(time.Second, true)
		m.Recharge(1, false)
		m.Settlement("skipped")
		m.OutcomeReceived("lost")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Settlement("resolved")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `hot_or_not_settlements_total{result="resolved"} 1`))
}
