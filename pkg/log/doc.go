/*
Package log provides structured logging for the engine using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("raftengine")               │          │
	│  │  - WithAccount(accountId)                    │          │
	│  │  - WithCollection(accountId, "Email")        │          │
	│  │  - WithRaftNode(nodeId)                      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "statechange",              │          │
	│  │    "time": "2026-07-31T10:30:00Z",          │          │
	│  │    "message": "flushed coalesced window"    │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-31T10:30:00Z INF flushed window component=statechange │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every engine package
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add a component name to all logs
  - WithAccount: Add account_id to all logs
  - WithCollection: Add account_id and collection to all logs
  - WithRaftNode: Add node_id to all logs

# Usage

Initializing the Logger:

	import "github.com/coremail/engine/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("cluster bootstrapped")
	log.Debug("checking raft leadership")
	log.Warn("state-change queue near capacity")
	log.Error("blob backend unreachable")
	log.Fatal("cannot start without a data directory") // exits process

Structured Logging:

	log.Logger.Info().
		Uint32("account_id", 7).
		Str("type", "Email").
		Msg("change log entry appended")

Context Loggers:

	raftLog := log.WithRaftNode(cfg.NodeID)
	raftLog.Info().Msg("applied committed entry")

	storeLog := log.WithComponent("store")
	storeLog.Debug().Msg("opened column families")

	changeLog := log.WithCollection(uint32(accountID), "Mailbox")
	changeLog.Info().Msg("document updated")

# Integration Points

This package is imported by the packages that log: pkg/raftengine
(divergence rollback and orphaned-blob delete failures), pkg/statechange
(push-subscription registration and delivery retry warnings),
pkg/blobstore (backend delete failures during purge), and cmd/coremaild
(process lifecycle). pkg/store and pkg/metrics do not log.

# Security

Never log secrets or sensitive data: redact tokens, passwords, and API
keys before they reach a log call. Use structured fields (.Str, .Int)
rather than string concatenation so user-controlled values cannot be
used to forge adjacent log lines.
*/
package log
