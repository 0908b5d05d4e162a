package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coremail/engine/pkg/blobstore"
	"github.com/coremail/engine/pkg/config"
	"github.com/coremail/engine/pkg/log"
	"github.com/coremail/engine/pkg/metrics"
	"github.com/coremail/engine/pkg/orm"
	"github.com/coremail/engine/pkg/raftengine"
	"github.com/coremail/engine/pkg/statechange"
	"github.com/coremail/engine/pkg/store"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage the coremaild cluster",
}

func init() {
	for _, c := range []*cobra.Command{clusterInitCmd, clusterJoinCmd} {
		c.Flags().String("node-id", "node-1", "This node's raft server id")
		c.Flags().String("bind-addr", "127.0.0.1:9000", "Raft TCP transport bind address")
		c.Flags().String("data-dir", "/var/lib/coremaild", "Directory for the KV store, blobs and raft logs")
		c.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for /metrics, /health, /ready, /live")
	}
	clusterJoinCmd.Flags().String("join-addr", "", "bind-addr of an existing cluster member to AddVoter against")
	clusterCmd.AddCommand(clusterInitCmd, clusterJoinCmd)
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a new single-node cluster",
	Long: `Bootstrap starts this node as the sole voter of a brand-new
raft configuration. Additional nodes join later via "cluster join"
plus an AddVoter call issued by the current leader.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(cmd, true)
	},
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Start this node and await admission as a voter",
	Long: `Join starts raft without bootstrapping a configuration. The
node does not become a cluster member until the existing leader calls
AddVoter for it; --join-addr is accepted for operator reference only
and is not read by this command, since the Raft TCP transport carries
the actual join handshake.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(cmd, false)
	},
}

func runNode(cmd *cobra.Command, bootstrap bool) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v, _ := cmd.Flags().GetString("node-id"); cmd.Flags().Changed("node-id") && v != "" {
		cfg.Cluster.NodeID = v
	}
	if v, _ := cmd.Flags().GetString("bind-addr"); cmd.Flags().Changed("bind-addr") && v != "" {
		cfg.Cluster.BindAddr = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); cmd.Flags().Changed("data-dir") && v != "" {
		cfg.Cluster.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); cmd.Flags().Changed("metrics-addr") && v != "" {
		cfg.MetricsAddr = v
	}

	if err := os.MkdirAll(cfg.Cluster.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logger := log.WithRaftNode(cfg.Cluster.NodeID)
	logger.Info().Str("data_dir", cfg.Cluster.DataDir).Msg("opening store")

	kv, err := store.Open(cfg.Cluster.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	backend, err := blobstore.NewLocalBackend(filepath.Join(cfg.Cluster.DataDir, "blobs"), cfg.BlobNestedLevels)
	if err != nil {
		return fmt.Errorf("open blob backend: %w", err)
	}
	acl := orm.NewACLStore(kv)
	blobs := blobstore.New(kv, backend, acl)

	engine := raftengine.New(raftengine.Config{
		NodeID:          cfg.Cluster.NodeID,
		BindAddr:        cfg.Cluster.BindAddr,
		DataDir:         cfg.Cluster.DataDir,
		ElectionTimeout: cfg.Cluster.ElectionTimeout,
	}, kv, blobs)

	if bootstrap {
		if err := engine.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		logger.Info().Msg("cluster bootstrapped")
	} else {
		if err := engine.Join(); err != nil {
			return fmt.Errorf("start raft: %w", err)
		}
		logger.Info().Msg("raft started, awaiting AddVoter from leader")
	}

	broker := statechange.NewBroker(cfg.StateChangeThrottle, statechange.NewHTTPPusher())
	broker.Start()
	defer broker.Stop()

	purgeStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed, err := blobs.Purge(time.Now()); err != nil {
					logger.Error().Err(err).Msg("blob purge failed")
				} else if removed > 0 {
					logger.Info().Int("removed", removed).Msg("purged unreferenced blobs")
				}
			case <-purgeStop:
				return
			}
		}
	}()
	defer close(purgeStop)

	collector := metrics.NewCollector(engine)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("raft", true, "started")
	metrics.RegisterComponent("store", true, "opened")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return nil
}
