package main

import (
	"fmt"

	"github.com/coremail/engine/pkg/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report local store diagnostics",
	Long: `Status opens this node's store and reports per-bucket key
counts. It does not start raft. The store is opened read-write and
BoltDB's exclusive file lock is taken with no timeout, so while a node
has the same data directory open the command waits until that node
closes its store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		kv, err := store.Open(dataDir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer kv.Close()

		buckets := map[string][]byte{
			"values":  store.BucketValues,
			"indexes": store.BucketIndexes,
			"bitmaps": store.BucketBitmaps,
			"logs":    store.BucketLogs,
			"blobs":   store.BucketBlobs,
		}
		fmt.Printf("data dir: %s\n", dataDir)
		for _, name := range []string{"values", "indexes", "bitmaps", "logs", "blobs"} {
			count := 0
			if err := kv.ScanPrefix(buckets[name], nil, func(k, v []byte) bool {
				count++
				return true
			}); err != nil {
				return fmt.Errorf("scan %s: %w", name, err)
			}
			fmt.Printf("  %-8s %d keys\n", name, count)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("data-dir", "/var/lib/coremaild", "Directory for the KV store, blobs and raft logs")
}
