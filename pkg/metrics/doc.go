/*
Package metrics provides Prometheus metrics collection and exposition
for the engine.

The metrics package defines and registers every engine metric using
the Prometheus client library, providing observability into Raft
cluster health, write-batch throughput, change-log depth, blob storage,
and state-change delivery. Metrics are exposed via an HTTP endpoint for
scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                  │          │
	│  │                                              │          │
	│  │  Raft: leader status, log index, peers      │          │
	│  │  WriteBatch: commit duration, ops total      │          │
	│  │  ChangeLog: depth, query duration            │          │
	│  │  Blob: refcount, bytes stored, uploads       │          │
	│  │  StateChange: subscribers, delivery, pushes  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: metrics.Handler()               │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Only the Raft gauges (set by Collector) and the State-Change metrics
(set by pkg/statechange) are recorded by engine code. The raft
apply/commit histograms and the WriteBatch, ChangeLog and Blob metrics
below are registered and exported, but no engine package records them.

Raft Metrics:

engine_raft_is_leader (Gauge): 1 if this node currently holds
leadership, else 0. Polled by Collector from raftengine.Engine.IsLeader.

engine_raft_peers_total (Gauge): size of the current raft configuration,
from raftengine.Engine.GetClusterServers.

engine_raft_log_index / engine_raft_applied_index (Gauge): raft's last
log index and last applied index, from Engine.GetRaftStats.

engine_raft_apply_duration_seconds / engine_raft_commit_duration_seconds
(Histogram): time to encode and submit an Update stream to raft, and
time for an Apply call to return once raft commits the entry.

WriteBatch Metrics:

engine_write_batch_commit_duration_seconds (Histogram),
engine_write_batch_ops_total (Counter): store.WriteBatch.Commit latency
and the number of Set/Delete/MergeBitmap ops staged per commit.

ChangeLog Metrics:

engine_changelog_depth{collection} (GaugeVec): changelog.Head per collection.
engine_changelog_query_duration_seconds (Histogram): changelog.Query
latency.

Blob Metrics:

engine_blob_refcount (Histogram): RefCount distribution sampled on
Put/Link/Unlink. engine_blob_bytes_stored (Gauge): cumulative bytes
written to the backend. engine_blob_uploads_total (Counter): count of
successful Put calls.

State-Change Metrics:

engine_statechange_subscribers_total (Gauge): live EventSubscriber
count; push subscriptions are not counted.
engine_statechange_delivery_duration_seconds
(Histogram): Broker.flush coalesce-to-delivery latency.
engine_push_delivery_failures_total (Counter): failed HTTPPusher.Push
attempts, incremented before a retry's backoff sleep.

# Usage

	import "github.com/coremail/engine/pkg/metrics"

	metrics.RaftLeader.Set(1)
	metrics.WriteBatchOpsTotal.Add(float64(batch.Len()))

	timer := metrics.NewTimer()
	// ... commit the batch ...
	timer.ObserveDuration(metrics.WriteBatchCommitDuration)

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())

# Integration Points

This package integrates with pkg/raftengine (Collector polls
IsLeader/GetClusterServers/GetRaftStats on a fixed interval),
pkg/statechange (subscriber gauge, delivery latency, push failures),
and cmd/coremaild (registers component health and serves the HTTP
endpoints). pkg/store, pkg/changelog and pkg/blobstore record no
metrics.

# Design Patterns

All metrics are package-level variables registered via MustRegister in
init(), matching the Prometheus client library's usual pattern: no
metric can be registered twice, and every metric is available before
main() runs. HealthChecker tracks named components (raft, store,
blobstore, ...) independently of the Prometheus registry so /health,
/ready, and /live can report structured JSON without scraping.

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
