// Package metrics exposes Prometheus counters for the download pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rss_torrent"

// Outcome label values.
const (
	ResultAdded    = "added"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
	ResultAborted  = "aborted"
	ResultRemoved  = "removed"
)

var (
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Feed entries submitted to the download daemon, by outcome.",
	}, []string{"result"})

	Skipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skipped_total",
		Help:      "Feed entries not submitted, by reason.",
	}, []string{"reason"})

	Removals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "removals_total",
		Help:      "Finished downloads removed from the daemon, by outcome.",
	}, []string{"result"})

	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Completed reconciliation cycles, by outcome.",
	}, []string{"result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification attempts, by outcome.",
	}, []string{"result"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a reconciliation cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// Notified records a notification attempt.
func Notified(sent bool) {
	if sent {
		Notifications.WithLabelValues("sent").Inc()
		return
	}
	Notifications.WithLabelValues("failed").Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
