package raftengine

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/coremail/engine/pkg/blobstore"
	"github.com/coremail/engine/pkg/store"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config configures a cluster Engine. Timeouts are tuned for a LAN
// deployment rather than raft's WAN-oriented defaults.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string

	HeartbeatTimeout   time.Duration
	ElectionTimeout    time.Duration
	CommitTimeout      time.Duration
	LeaderLeaseTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = 500 * time.Millisecond
	}
	if c.ElectionTimeout == 0 {
		c.ElectionTimeout = 500 * time.Millisecond
	}
	if c.CommitTimeout == 0 {
		c.CommitTimeout = 50 * time.Millisecond
	}
	if c.LeaderLeaseTimeout == 0 {
		c.LeaderLeaseTimeout = 250 * time.Millisecond
	}
}

// Engine wraps a hashicorp/raft node replicating an Update stream into
// a store.Store through an FSM. It owns the raft transport, log store
// and stable store; callers drive Bootstrap or Join exactly once.
type Engine struct {
	cfg Config
	fsm *FSM
	raft *raft.Raft
}

// New constructs an Engine. Raft itself is not started until Bootstrap
// or Join is called.
func New(cfg Config, kv *store.Store, blobs *blobstore.Store) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg, fsm: NewFSM(kv, blobs)}
}

func (e *Engine) raftConfig() *raft.Config {
	c := raft.DefaultConfig()
	c.LocalID = raft.ServerID(e.cfg.NodeID)
	c.HeartbeatTimeout = e.cfg.HeartbeatTimeout
	c.ElectionTimeout = e.cfg.ElectionTimeout
	c.CommitTimeout = e.cfg.CommitTimeout
	c.LeaderLeaseTimeout = e.cfg.LeaderLeaseTimeout
	return c
}

func (e *Engine) start() (*raft.Raft, error) {
	addr, err := net.ResolveTCPAddr("tcp", e.cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftengine: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(e.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftengine: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(e.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftengine: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(e.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("raftengine: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(e.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("raftengine: create stable store: %w", err)
	}

	r, err := raft.NewRaft(e.raftConfig(), e.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("raftengine: create raft: %w", err)
	}
	return r, nil
}

// Bootstrap starts raft and forms a brand-new single-node cluster with
// this node as its only member. Subsequent members join via AddVoter,
// invoked on this node once the leader learns of them.
func (e *Engine) Bootstrap() error {
	r, err := e.start()
	if err != nil {
		return err
	}
	e.raft = r

	cfg := raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(e.cfg.NodeID), Address: raft.ServerAddress(e.cfg.BindAddr)},
		},
	}
	future := r.BootstrapCluster(cfg)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftengine: bootstrap cluster: %w", err)
	}
	return nil
}

// Join starts raft without bootstrapping a configuration; the caller is
// expected to already be registered (or about to be registered, via a
// leader-side AddVoter call) as a voter in the target cluster's log.
func (e *Engine) Join() error {
	r, err := e.start()
	if err != nil {
		return err
	}
	e.raft = r
	return nil
}

// AddVoter registers nodeID/address as a new voting member. Only the
// current leader can do this; callers should route the request there
// first.
func (e *Engine) AddVoter(nodeID, address string) error {
	if e.raft == nil {
		return fmt.Errorf("raftengine: not started")
	}
	if !e.IsLeader() {
		return fmt.Errorf("raftengine: not leader, current leader is %s", e.LeaderAddr())
	}
	future := e.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// RemoveServer removes a member from the cluster's configuration.
func (e *Engine) RemoveServer(nodeID string) error {
	if e.raft == nil {
		return fmt.Errorf("raftengine: not started")
	}
	if !e.IsLeader() {
		return fmt.Errorf("raftengine: not leader")
	}
	future := e.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	return future.Error()
}

// GetClusterServers reports the current cluster configuration.
func (e *Engine) GetClusterServers() ([]raft.Server, error) {
	if e.raft == nil {
		return nil, fmt.Errorf("raftengine: not started")
	}
	future := e.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, err
	}
	return future.Configuration().Servers, nil
}

// IsLeader reports whether this node currently holds raft leadership.
func (e *Engine) IsLeader() bool {
	return e.raft != nil && e.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's transport address, or "" if
// unknown.
func (e *Engine) LeaderAddr() string {
	if e.raft == nil {
		return ""
	}
	return string(e.raft.Leader())
}

// GetRaftStats exposes the subset of raft.Raft.Stats the status RPC
// and metrics gauges report.
func (e *Engine) GetRaftStats() map[string]string {
	if e.raft == nil {
		return nil
	}
	return e.raft.Stats()
}

// Apply encodes updates and submits them to raft, blocking until the
// entry commits (or the timeout elapses). It must only be called on the
// leader; raft itself rejects Apply calls made against a follower.
func (e *Engine) Apply(updates []Update, timeout time.Duration) error {
	if e.raft == nil {
		return fmt.Errorf("raftengine: not started")
	}
	future := e.raft.Apply(EncodeStream(updates), timeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftengine: apply: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// Replicate submits updates with a fixed 10-second timeout. It exists
// so write-path callers (package docstore) can depend on a one-method
// surface instead of the full Engine.
func (e *Engine) Replicate(updates []Update) error {
	return e.Apply(updates, 10*time.Second)
}

// Shutdown stops the raft node. It does not close the underlying
// store.Store, which the caller still owns.
func (e *Engine) Shutdown() error {
	if e.raft == nil {
		return nil
	}
	return e.raft.Shutdown().Error()
}
