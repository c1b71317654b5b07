/*
Package runtime wires the bot runtime together.

# Package Structure

## Runtime (runtime.go)

Runtime owns the state store, the sink logger, the stats, the dispatcher and
the event bus. Start runs the startup sequence in a fixed order and supervises
the router, the optional metrics server and the gateway connection with an
errgroup.

## Event bus (bus.go, middleware.go)

Inbound envelopes are published on the configured Watermill transport and
consumed by a single router handler that decodes them, recognises simple
commands and hands them to the dispatcher. The router carries correlation
IDs, debug logging, tracing, metrics and panic recovery. There is no retry
middleware: a failed event is logged and acked.

## Lifecycle (lifecycle.go)

An optional module that persists guild and user records and logs the guild
and newUser categories.

## Status (status.go)

A JSON status endpoint served next to /metrics.

# Sub-packages

  - config/: configuration loading and validation
  - dispatch/: guarded event dispatch and hooks
  - errors/: sentinel errors and error types
  - event/: the event envelope
  - gateway/: the websocket gateway client
  - guards/: guard chain and the built-in guards
  - logging/: sink logger and structured service logger
  - state/: SQLite, Redis and in-memory state stores
  - stats/: Prometheus counters
  - transport/: event bus factory
*/
package runtime
