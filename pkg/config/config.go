// Package config declares the recognised server options as a single
// Config struct loadable from a YAML file and overridable by cobra
// command flags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimit is a (requests, interval) token-bucket configuration.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Interval time.Duration `yaml:"interval"`
}

// Cluster configures the raftengine node this process runs.
type Cluster struct {
	NodeID          string        `yaml:"nodeId"`
	BindAddr        string        `yaml:"bindAddr"`
	DataDir         string        `yaml:"dataDir"`
	RPCPort         int           `yaml:"rpcPort"`
	ElectionTimeout time.Duration `yaml:"electionTimeout"`
}

// Config is the full recognised option set. Every field has a
// zero-config default applied by Defaults/Load, so a process started
// with no file still gets sane limits.
type Config struct {
	MaxSizeUpload        int64 `yaml:"maxSizeUpload"`
	MaxConcurrentUpload  int   `yaml:"maxConcurrentUpload"`
	MaxSizeRequest        int64 `yaml:"maxSizeRequest"`
	MaxConcurrentRequests int   `yaml:"maxConcurrentRequests"`
	MaxCallsInRequest     int   `yaml:"maxCallsInRequest"`
	MaxObjectsInGet       int   `yaml:"maxObjectsInGet"`
	MaxObjectsInSet       int   `yaml:"maxObjectsInSet"`
	QueryMaxResults        int `yaml:"queryMaxResults"`
	ChangesMaxResults      int `yaml:"changesMaxResults"`

	MailboxMaxTotal   int `yaml:"mailboxMaxTotal"`
	MailboxMaxDepth   int `yaml:"mailboxMaxDepth"`
	MailboxNameMaxLen int `yaml:"mailboxNameMaxLen"`

	MailAttachmentsMaxSize int64 `yaml:"mailAttachmentsMaxSize"`
	MailImportMaxItems     int   `yaml:"mailImportMaxItems"`
	MailParseMaxItems      int   `yaml:"mailParseMaxItems"`

	BlobTempTTL        time.Duration `yaml:"blobTempTtl"`
	BlobNestedLevels    int          `yaml:"blobNestedLevels"`

	RateLimitAuthenticated RateLimit `yaml:"rateLimitAuthenticated"`
	RateLimitAnonymous     RateLimit `yaml:"rateLimitAnonymous"`

	StateChangeThrottle time.Duration `yaml:"stateChangeThrottle"`

	Cluster Cluster `yaml:"cluster"`

	LogLevel  string `yaml:"logLevel"`
	LogJSON   bool   `yaml:"logJson"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Defaults returns a Config populated with every documented default.
func Defaults() *Config {
	return &Config{
		MaxSizeUpload:        50 * 1024 * 1024,
		MaxConcurrentUpload:  8,
		MaxSizeRequest:        10 * 1024 * 1024,
		MaxConcurrentRequests: 8,
		MaxCallsInRequest:     32,
		MaxObjectsInGet:       500,
		MaxObjectsInSet:       500,
		QueryMaxResults:       1000,
		ChangesMaxResults:     1000,

		MailboxMaxTotal:   1000,
		MailboxMaxDepth:   10,
		MailboxNameMaxLen: 255,

		MailAttachmentsMaxSize: 50 * 1024 * 1024,
		MailImportMaxItems:     1,
		MailParseMaxItems:      1,

		BlobTempTTL:      3600 * time.Second,
		BlobNestedLevels: 2,

		RateLimitAuthenticated: RateLimit{Requests: 1000, Interval: 60 * time.Second},
		RateLimitAnonymous:     RateLimit{Requests: 100, Interval: 60 * time.Second},

		StateChangeThrottle: 1000 * time.Millisecond,

		Cluster: Cluster{
			NodeID:          "node-1",
			BindAddr:        "127.0.0.1:9000",
			DataDir:         "/var/lib/coremaild",
			RPCPort:         9001,
			ElectionTimeout: 500 * time.Millisecond,
		},

		LogLevel:    "info",
		LogJSON:     false,
		MetricsAddr: "127.0.0.1:9090",
	}
}

// Load reads a YAML config file, applying its values on top of
// Defaults(). A missing file is not an error: the caller gets the
// documented defaults, matching a zero-config single-node start.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
