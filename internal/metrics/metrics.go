// ABOUTME: Prometheus collectors for the sync engine, the change feed, and the realtime server
// ABOUTME: Registered on the default registry; the server exposes them through Handler

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------
// Client side
// -----------------------------------------------------------------------------

var (
	// ReconcileOutcomes counts change events applied to local state, by outcome.
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_reconcile_events_total",
		Help: "Change events applied to local state, by outcome",
	}, []string{"kind", "outcome"})

	// Resyncs counts full reloads of local state.
	Resyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_resyncs_total",
		Help: "Full resyncs of local state, by result",
	}, []string{"result"})

	// CommandFailures counts failed mutation commands, by command and error kind.
	CommandFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_command_failures_total",
		Help: "Failed mutation commands by command and error kind",
	}, []string{"op", "kind"})

	// FeedConnects counts successful feed (re)connections.
	FeedConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_feed_connects_total",
		Help: "Successful change feed connections",
	}, []string{"channel", "reconnect"})

	// FeedDisconnects counts transport failures that forced a reconnect.
	FeedDisconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_feed_disconnects_total",
		Help: "Change feed transport failures",
	}, []string{"channel"})

	// FeedMalformed counts frames dropped because they failed validation.
	FeedMalformed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_feed_malformed_frames_total",
		Help: "Change feed frames rejected as malformed",
	}, []string{"channel"})

	// FeedDuplicates counts re-delivered envelopes dropped by id.
	FeedDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_feed_duplicate_frames_total",
		Help: "Change feed frames dropped as exact re-deliveries",
	}, []string{"channel"})

	// LocalRecords tracks the size of the local record set.
	LocalRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tasksync_local_records",
		Help: "Records currently held in local state",
	})
)

// -----------------------------------------------------------------------------
// Server side
// -----------------------------------------------------------------------------

var (
	// EventsPublished counts change events fanned out, by channel and type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_events_published_total",
		Help: "Change events published to realtime subscribers",
	}, []string{"channel", "type"})

	// Subscribers tracks connected realtime subscribers.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tasksync_realtime_subscribers",
		Help: "Currently connected realtime subscribers",
	})

	// SubscribersEvicted counts subscribers dropped for falling behind.
	SubscribersEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_realtime_evictions_total",
		Help: "Realtime subscribers evicted because their buffer overflowed",
	}, []string{"channel"})

	// RequestDuration observes REST request latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tasksync_http_request_duration_seconds",
		Help:    "REST request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
