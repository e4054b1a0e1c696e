/*
Package log provides structured logging for Station Calyx using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Global Logger                   │           │
	│  │  - Zerolog instance                        │           │
	│  │  - Initialized via log.Init()              │           │
	│  │  - Thread-safe for concurrent use          │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Configuration                    │           │
	│  │  - Level: debug/info/warn/error            │           │
	│  │  - Format: JSON or console (human)         │           │
	│  │  - Output: stderr, file, or custom writer  │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │         Component Loggers                  │           │
	│  │  - WithComponent("coordinator")            │           │
	│  │  - WithIntentID("i-rotate-logs")           │           │
	│  │  - WithManifestID("a1b2c3d4e5f6")          │           │
	│  │  - WithCapability("log_rotation")          │           │
	│  └────────────────────────────────────────────┘           │
	└───────────────────────────────────────────────────────────┘

Logs go to stderr by default so that CLI output (pulse summaries, status
tables) stays clean on stdout.

# Usage

Initializing the logger:

	// JSON output (serve mode)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

	// Console output (interactive CLI)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
	})

Simple logging:

	log.Info("coordinator started")
	log.Warn("heartbeat stale")
	log.Error("state write failed")

Structured logging:

	log.Logger.Info().
		Str("intent_id", intent.ID).
		Int("queued", queue.Count()).
		Msg("intent accepted")

Component loggers:

	coordLog := log.WithComponent("coordinator")
	coordLog.Debug().Int("events", len(events)).Msg("pulse reflect stage")

	engineLog := log.WithComponent("engine").
		With().Str("manifest_id", manifestID).Logger()
	engineLog.Info().Msg("manifest claimed")

# Integration Points

This package integrates with:

  - pkg/coordinator: logs pulse stages and audit-write failures
  - pkg/engine: logs claim outcomes and domain panics
  - pkg/telemetry: logs skipped rows at debug level
  - pkg/state: logs guardrail violations
  - pkg/escalate: logs filed escalations
  - cmd/calyx: initializes the logger from flags/config

# Design Patterns

Global logger pattern:
  - Single package-level Logger instance
  - Initialized once at process start
  - Accessible from all packages without plumbing

Context logger pattern:
  - Child loggers carry intent/manifest/capability fields
  - Every log line from one execution shares its identifiers

Error logging pattern:
  - Always use .Err(err) for error values
  - Absorbed errors (telemetry parse failures, audit write failures) are
    logged here and nowhere else; that is their only trace

# Best Practices

Do:
  - Use Info level in serve mode
  - Use structured fields for queryable data
  - Create component-specific loggers

Don't:
  - Log heartbeat payload contents (they can carry operator notes)
  - Use Debug level in production serve loops
  - Write to stdout (reserved for command output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - pkg/coordinator for the audit-write failure policy
*/
package log
