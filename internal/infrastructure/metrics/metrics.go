package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mensajes procesados por corrida, por resultado: succeeded, failed, skipped
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fel_ingest_messages_total",
			Help: "Total number of notification messages processed",
		},
		[]string{"result"},
	)

	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fel_ingest_failures_total",
			Help: "Total number of per-message failures by pipeline step",
		},
		[]string{"step"},
	)

	// Descargas del XML
	DownloadAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fel_ingest_download_attempts_total",
			Help: "Total number of download attempts against the certification service",
		},
		[]string{"outcome"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fel_ingest_token_refresh_total",
			Help: "Total number of mailbox token refreshes",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fel_ingest_run_duration_seconds",
			Help:    "Duration of a complete ingestion run in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	MarkedReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fel_ingest_marked_read_total",
			Help: "Total number of messages marked as read after persistence",
		},
	)
)
