package metrics

import (
	"strconv"
	"time"

	"github.com/coremail/engine/pkg/raftengine"
)

// Collector polls an Engine on an interval and mirrors its raft state
// into the package's gauges, the way the rest of the corpus's
// collectors sample a long-lived component rather than pushing metrics
// inline from the hot path.
type Collector struct {
	engine *raftengine.Engine
	stopCh chan struct{}
}

// NewCollector creates a collector over engine.
func NewCollector(engine *raftengine.Engine) *Collector {
	return &Collector{
		engine: engine,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.engine.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	servers, err := c.engine.GetClusterServers()
	if err == nil {
		RaftPeers.Set(float64(len(servers)))
	}

	stats := c.engine.GetRaftStats()
	if stats == nil {
		return
	}
	if v, err := strconv.ParseUint(stats["last_log_index"], 10, 64); err == nil {
		RaftLogIndex.Set(float64(v))
	}
	if v, err := strconv.ParseUint(stats["applied_index"], 10, 64); err == nil {
		RaftAppliedIndex.Set(float64(v))
	}
}
