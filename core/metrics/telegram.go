package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		updatesHandledTotal,
		updateDurationSeconds,
		rateLimitedTotal,
		messagesSentTotal,
		sendFailuresTotal,
	)
}

var (
	updatesHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_updates_handled_total",
			Help: "Telegram updates handled, by handler and outcome.",
		},
		[]string{"handler", "outcome"},
	)

	updateDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopbot_update_duration_seconds",
			Help:    "Handler latency distribution.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"handler"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shopbot_rate_limited_total",
			Help: "Updates dropped by the per-user rate limiter.",
		},
	)

	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_messages_sent_total",
			Help: "Outbound messages by keyboard presence.",
		},
		[]string{"kb"},
	)

	sendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_send_failures_total",
			Help: "Outbound Telegram calls that failed after retries, by error kind.",
		},
		[]string{"kind"},
	)
)

// ObserveUpdate records a handled update.
func ObserveUpdate(handler, outcome string, took time.Duration) {
	updatesHandledTotal.WithLabelValues(norm(handler), norm(outcome)).Inc()
	updateDurationSeconds.WithLabelValues(norm(handler)).Observe(took.Seconds())
}

// IncRateLimited counts an update dropped by rate limiting.
func IncRateLimited() {
	rateLimitedTotal.Inc()
}

// AddMessagesSent counts outbound messages produced by one update.
func AddMessagesSent(n int, keyboard bool) {
	if n <= 0 {
		return
	}
	label := "false"
	if keyboard {
		label = "true"
	}
	messagesSentTotal.WithLabelValues(label).Add(float64(n))
}

// IncSendFailure counts an outbound call that gave up.
func IncSendFailure(kind string) {
	sendFailuresTotal.WithLabelValues(norm(kind)).Inc()
}
