// Package metrics holds the process-wide prometheus collectors. They are
// registered on the default registry and served by the http surface at
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncWrites counts entity writes by kind ("artist", "show", "venue")
	// and outcome ("upsert", "insert_only", "unpersisted").
	SyncWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcheck_sync_writes_total",
		Help: "Entity sync writes by kind and outcome.",
	}, []string{"kind", "outcome"})

	// ExternalFetches times calls to the ticketing and catalog sources.
	ExternalFetches = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "soundcheck_external_fetch_duration_seconds",
		Help:    "Duration of external source fetches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source", "operation"})

	// SnapshotReads counts track snapshot lookups by result ("hit", "miss").
	SnapshotReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcheck_track_snapshot_reads_total",
		Help: "Track snapshot reads by result.",
	}, []string{"result"})

	// VotesCast counts accepted votes by participant class
	// ("authenticated", "anonymous").
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcheck_votes_total",
		Help: "Votes accepted by participant class.",
	}, []string{"participant"})

	// VotesRejected counts rejected votes by reason
	// ("quota", "unknown_song").
	VotesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcheck_votes_rejected_total",
		Help: "Votes rejected by reason.",
	}, []string{"reason"})

	SongsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soundcheck_setlist_songs_total",
		Help: "Songs added to setlists.",
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soundcheck_ws_clients",
		Help: "Connected websocket clients.",
	})

	// Tasks counts background task outcomes
	// ("ok", "failed", "panicked", "dropped").
	Tasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcheck_tasks_total",
		Help: "Background task outcomes.",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcheck_http_requests_total",
		Help: "HTTP requests by route, method, and status.",
	}, []string{"route", "method", "status"})
)
