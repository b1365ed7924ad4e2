// Package metrics holds the Prometheus collectors shared by the bot, the
// workflow engine and the relay server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "appealbot"

// Registry is the process registry exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// Updates counts inbound Telegram updates by kind.
	Updates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_total",
		Help:      "Inbound updates by kind.",
	}, []string{"kind"})

	// HandlerDuration observes handler latency by handler name and outcome.
	HandlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "handler_duration_seconds",
		Help:      "Time spent handling one update.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"handler", "outcome"})

	// AlbumReleases counts media group batches handed to the workflow.
	AlbumReleases = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "album_releases_total",
		Help:      "Media groups released as one batch.",
	})

	// AlbumLate counts group events that arrived after their batch was released.
	AlbumLate = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "album_late_events_total",
		Help:      "Media group events dropped because the group was already released.",
	})

	// AlbumPending tracks groups waiting for their quiescence window.
	AlbumPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "album_pending_groups",
		Help:      "Media groups currently buffered.",
	})

	// Appeals counts finalized appeals by result.
	Appeals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "appeals_total",
		Help:      "Finalized appeal drafts by result.",
	}, []string{"result"})

	// BanTargets counts ban batch targets by mode and outcome.
	BanTargets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ban_targets_total",
		Help:      "Ban and unban batch targets by outcome.",
	}, []string{"mode", "outcome"})

	// SenderFailures counts outbound Bot API jobs that exhausted their retries.
	SenderFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sender_failures_total",
		Help:      "Asynchronous Bot API calls that failed.",
	})

	// Panics counts handler panics caught by the recover middleware.
	Panics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handler_panics_total",
		Help:      "Update handlers that panicked.",
	})

	// RelayRequests counts relay responses by status code.
	RelayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_requests_total",
		Help:      "File relay responses by status.",
	}, []string{"status"})

	// RelayBytes counts bytes streamed by the relay.
	RelayBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_bytes_total",
		Help:      "Bytes streamed to relay clients.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Updates,
		HandlerDuration,
		AlbumReleases,
		AlbumLate,
		AlbumPending,
		Appeals,
		BanTargets,
		SenderFailures,
		Panics,
		RelayRequests,
		RelayBytes,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
