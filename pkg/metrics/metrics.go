package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsObserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rows_observed_total",
		Help: "Total number of CSV rows read from uploaded files",
	})

	RowsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rows_published_total",
		Help: "Total number of CSV rows published to the record queue",
	})

	RowsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rows_dropped_total",
		Help: "Total number of CSV rows dropped after a failed queue publish",
	})

	FilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_files_processed_total",
		Help: "Total number of uploaded files processed",
	}, []string{"status"})

	FileProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_file_processing_duration_seconds",
		Help:    "Duration of uploaded file processing",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	BatchesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_batches_processed_total",
		Help: "Total number of queue batches handled by the consumer",
	}, []string{"status"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_batch_duration_seconds",
		Help:    "Duration of queue batch handling, settle included",
		Buckets: prometheus.DefBuckets,
	})

	RecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_records_written_total",
		Help: "Total number of product and stock pairs written",
	})

	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_notifications_total",
		Help: "Total number of batch notifications",
	}, []string{"status"})

	MessagesRequeued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_messages_requeued_total",
		Help: "Total number of queue messages returned for redelivery",
	}, []string{"destination"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordDatabaseQuery(queryType string, err error, duration float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueries.WithLabelValues(queryType, status).Inc()
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

func RecordFileProcessed(status string, elapsed time.Duration) {
	FilesProcessed.WithLabelValues(status).Inc()
	FileProcessingDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func RecordBatch(status string) {
	BatchesProcessed.WithLabelValues(status).Inc()
}

func RecordNotification(status string) {
	NotificationsPublished.WithLabelValues(status).Inc()
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
