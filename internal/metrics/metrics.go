package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_polls_total",
		Help: "Ranking polls performed",
	})
	PollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_poll_failures_total",
		Help: "Polls that failed on fetch, publish, or cache persist",
	})
	ChangesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_changes_detected_total",
		Help: "Polls whose diff against the cached ranking was non-empty",
	})
	MessagesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_messages_posted_total",
		Help: "New ranking messages created",
	})
	MessagesEdited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_messages_edited_total",
		Help: "Existing ranking messages edited in place",
	})
	PollInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_poll_interval_seconds",
		Help: "Current adaptive polling interval",
	})
	CacheDates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_cache_dates",
		Help: "Dates currently held in the change-detection cache",
	})
)
