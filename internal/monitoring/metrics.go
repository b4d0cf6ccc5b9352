package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DownloadsTotal tracks finished downloads by terminal status
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playvault_downloads_total",
			Help: "Total number of downloads by terminal status",
		},
		[]string{"status"},
	)

	// DownloadDuration tracks download duration in seconds
	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playvault_download_duration_seconds",
			Help:    "Download duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
	)

	// DownloadBytesTotal tracks total bytes downloaded
	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playvault_download_bytes_total",
			Help: "Total bytes downloaded",
		},
	)

	// QueueSize tracks current download queue depth
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playvault_queue_size",
			Help: "Current download queue depth",
		},
	)

	// ActiveDownload tracks whether a transfer is in flight (0 or 1, the
	// worker loop drains one item at a time)
	ActiveDownload = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playvault_active_download",
			Help: "Whether a transfer is currently in flight",
		},
	)

	// CacheSizeBytes tracks the total size of cached payloads
	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playvault_cache_size_bytes",
			Help: "Total size of cached track payloads",
		},
	)

	// CacheEvictionsTotal tracks records removed by the eviction policy
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playvault_cache_evictions_total",
			Help: "Total number of cache records evicted",
		},
	)

	// SyncRunsTotal tracks reconciliation sweeps by result
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playvault_sync_runs_total",
			Help: "Total number of playlist reconciliation runs",
		},
		[]string{"result"},
	)

	// SyncTracksEnqueuedTotal tracks tracks enqueued by the reconciler
	SyncTracksEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playvault_sync_tracks_enqueued_total",
			Help: "Total number of tracks enqueued by playlist reconciliation",
		},
	)

	// ErrorsTotal tracks errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playvault_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

// RecordDownloadStart records the start of a transfer
func RecordDownloadStart() {
	ActiveDownload.Set(1)
}

// RecordDownloadComplete records a completed transfer
func RecordDownloadComplete(duration time.Duration, bytes int64) {
	DownloadsTotal.WithLabelValues("completed").Inc()
	DownloadDuration.Observe(duration.Seconds())
	DownloadBytesTotal.Add(float64(bytes))
	ActiveDownload.Set(0)
}

// RecordDownloadFailed records a failed transfer
func RecordDownloadFailed(errorType string) {
	DownloadsTotal.WithLabelValues("failed").Inc()
	ErrorsTotal.WithLabelValues(errorType).Inc()
	ActiveDownload.Set(0)
}

// RecordDownloadCancelled records a cancelled transfer
func RecordDownloadCancelled() {
	DownloadsTotal.WithLabelValues("cancelled").Inc()
	ActiveDownload.Set(0)
}

// UpdateQueueSize updates the queue depth metric
func UpdateQueueSize(size int) {
	QueueSize.Set(float64(size))
}

// UpdateCacheSize updates the cache size metric
func UpdateCacheSize(bytes int64) {
	CacheSizeBytes.Set(float64(bytes))
}

// RecordEvictions records cache evictions
func RecordEvictions(count int) {
	CacheEvictionsTotal.Add(float64(count))
}

// RecordSyncRun records a reconciliation run
func RecordSyncRun(result string) {
	SyncRunsTotal.WithLabelValues(result).Inc()
}

// RecordError records an error
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}
