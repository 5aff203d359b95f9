// Package metrics exposes the Prometheus collectors of the settlement service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	notifications       *prometheus.CounterVec
	notifyDuration      prometheus.Histogram
	rechargeRequests    *prometheus.CounterVec
	settlements         *prometheus.CounterVec
	outcomesReceived    *prometheus.CounterVec
	rechargeUnitsWanted prometheus.Counter
}

// New registers the collectors on reg and serves reg from Handler.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hot_or_not_notifications_total",
			Help: "Bet outcome notifications sent to bettor instances by result.",
		}, []string{"result"}),
		notifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hot_or_not_notification_duration_seconds",
			Help:    "Histogram of remote notification call durations.",
			Buckets: prometheus.DefBuckets,
		}),
		rechargeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hot_or_not_recharge_requests_total",
			Help: "Resource top-up requests by result.",
		}, []string{"result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hot_or_not_settlements_total",
			Help: "Slot settlements by result (resolved, skipped, failed).",
		}, []string{"result"}),
		outcomesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hot_or_not_outcomes_received_total",
			Help: "Bet outcomes received from other instances by kind.",
		}, []string{"kind"}),
		rechargeUnitsWanted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hot_or_not_recharge_units_requested_total",
			Help: "Resource units asked for across all top-up requests.",
		}),
	}

	reg.MustRegister(
		m.notifications,
		m.notifyDuration,
		m.rechargeRequests,
		m.settlements,
		m.outcomesReceived,
		m.rechargeUnitsWanted,
	)
	return m
}

func resultLabel(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

func (m *Metrics) Notification(duration time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.notifyDuration.Observe(duration.Seconds())
	m.notifications.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) Recharge(units uint64, ok bool) {
	if m == nil {
		return
	}
	m.rechargeUnitsWanted.Add(float64(units))
	m.rechargeRequests.WithLabelValues(resultLabel(ok)).Inc()
}

// Settlement counts one TabulateSlot run; result is resolved, skipped or failed.
func (m *Metrics) Settlement(result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
}

func (m *Metrics) OutcomeReceived(kind string) {
	if m == nil {
		return
	}
	m.outcomesReceived.WithLabelValues(kind).Inc()
}

// Handler serves the registry this Metrics was built on.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
