package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_raft_apply_duration_seconds",
			Help:    "Time taken to encode and submit an Update stream to Raft",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_raft_commit_duration_seconds",
			Help:    "Time for a Raft Apply call to return after the entry commits",
			Buckets: prometheus.DefBuckets,
		},
	)

	// JMAP API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_api_requests_total",
			Help: "Total number of JMAP method calls by method name and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_api_request_duration_seconds",
			Help:    "JMAP method call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Storage engine metrics
	WriteBatchCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_write_batch_commit_duration_seconds",
			Help:    "Time taken to commit a WriteBatch to the column-family store",
			Buckets: prometheus.DefBuckets,
		},
	)

	WriteBatchOpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_write_batch_ops_total",
			Help: "Total number of Set/Delete/MergeBitmap operations committed",
		},
	)

	// Change log metrics
	ChangeLogDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_changelog_depth",
			Help: "Number of change-log entries retained for an account/collection",
		},
		[]string{"collection"},
	)

	ChangeLogQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_changelog_query_duration_seconds",
			Help:    "Time taken to fold a Changes query over the change log",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Blob store metrics
	BlobRefCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_blob_refcount",
			Help:    "Distribution of live reference counts observed on blob access",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	BlobBytesStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_blob_bytes_stored",
			Help: "Total bytes currently held by the blob backend",
		},
	)

	BlobUploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_blob_uploads_total",
			Help: "Total number of distinct blobs accepted via upload",
		},
	)

	// State-change bus metrics
	StateChangeSubscribersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_statechange_subscribers_total",
			Help: "Total number of active event-source subscribers",
		},
	)

	StateChangeDeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_statechange_delivery_duration_seconds",
			Help:    "Time taken to fan a coalesced window out to subscribers",
			Buckets: prometheus.DefBuckets,
		},
	)

	PushDeliveryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_push_delivery_failures_total",
			Help: "Total number of push-subscription delivery attempts that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(RaftCommitDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(WriteBatchCommitDuration)
	prometheus.MustRegister(WriteBatchOpsTotal)
	prometheus.MustRegister(ChangeLogDepth)
	prometheus.MustRegister(ChangeLogQueryDuration)
	prometheus.MustRegister(BlobRefCount)
	prometheus.MustRegister(BlobBytesStored)
	prometheus.MustRegister(BlobUploadsTotal)
	prometheus.MustRegister(StateChangeSubscribersTotal)
	prometheus.MustRegister(StateChangeDeliveryDuration)
	prometheus.MustRegister(PushDeliveryFailuresTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
