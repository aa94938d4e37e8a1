package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_sync_pending_items",
		Help: "Mutations queued for the remote store.",
	})
	metricFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sync_failed_items_total",
		Help: "Queued mutations dropped after exhausting retries.",
	})
	metricOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_sync_online",
		Help: "1 when the remote store is reachable.",
	})
	metricLastSync = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_sync_last_success_timestamp_seconds",
		Help: "Unix time of the last successful sync.",
	})
	metricPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sync_passes_total",
		Help: "Sync passes attempted.",
	})
)
