/*
Package log provides structured logging for the cluster runtime using
zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers and configurable log levels. All logs include
timestamps and a pid field (since each worker is its own OS process) and
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
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("transport")                │          │
	│  │  - WithWorker(3)                             │          │
	│  │  - WithPath("orders/42")                     │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	log.WithComponent("bootstrap").Info().Msg("cluster starting")

	transportLog := log.WithComponent("transport")
	transportLog.Warn().Str("peer", "worker-2").Msg("send to unknown peer, dropping")

	workerLog := log.WithWorker(2)
	workerLog.Info().Msg("connected to peers")

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
