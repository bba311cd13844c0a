// Package metrics collects and exposes Prometheus metrics for the dispatch
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics interface the usecase layer depends on.
type Recorder interface {
	RecordEvent(kind string)
	RecordDeliveries(success, failure int)
	RecordTokensPruned(count int)
	RecordNotificationCreated(notificationType string)
	RecordStatsApplied(added int)
}

// Collector is the Prometheus-backed Recorder implementation.
type Collector struct {
	events        *prometheus.CounterVec
	deliveryOK    prometheus.Counter
	deliveryFail  prometheus.Counter
	tokensPruned  prometheus.Counter
	notifications *prometheus.CounterVec
	statsApplied  prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plannotifier_events_total",
			Help: "Store-change events handled, by kind",
		}, []string{"kind"}),
		deliveryOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plannotifier_deliveries_success_total",
			Help: "Per-token push deliveries accepted by the transport",
		}),
		deliveryFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plannotifier_deliveries_failure_total",
			Help: "Per-token push deliveries rejected by the transport",
		}),
		tokensPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plannotifier_tokens_pruned_total",
			Help: "Device tokens removed after a permanent delivery failure",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plannotifier_notifications_created_total",
			Help: "Notification records created, by type",
		}, []string{"type"}),
		statsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plannotifier_checkins_aggregated_total",
			Help: "Newly checked-in participants folded into creator stats",
		}),
	}

	reg.MustRegister(
		c.events,
		c.deliveryOK,
		c.deliveryFail,
		c.tokensPruned,
		c.notifications,
		c.statsApplied,
	)

	return c
}

func (c *Collector) RecordEvent(kind string) {
	c.events.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordDeliveries(success, failure int) {
	c.deliveryOK.Add(float64(success))
	c.deliveryFail.Add(float64(failure))
}

func (c *Collector) RecordTokensPruned(count int) {
	c.tokensPruned.Add(float64(count))
}

func (c *Collector) RecordNotificationCreated(notificationType string) {
	c.notifications.WithLabelValues(notificationType).Inc()
}

func (c *Collector) RecordStatsApplied(added int) {
	c.statsApplied.Add(float64(added))
}

// Noop discards every metric. Used in tests.
type Noop struct{}

func (Noop) RecordEvent(string)               {}
func (Noop) RecordDeliveries(int, int)        {}
func (Noop) RecordTokensPruned(int)           {}
func (Noop) RecordNotificationCreated(string) {}
func (Noop) RecordStatsApplied(int)           {}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
