// Package botcore is the runtime core of a chat bot: it owns the persistent
// operational state, runs every inbound platform event through a guard chain,
// dispatches permitted events to the handlers registered for their type, and
// logs to the console, per-level files and remote channels.
//
// Runtime is the composition root. NewRuntime wires it from a Config; Start
// then binds the state store, runs the registered modules, seeds the default
// state entries without overwriting existing ones, fails fast when the gateway
// token is missing, starts the event bus and finally connects to the gateway.
//
// # Guards
//
// Two guards run before every dispatch: NotBot vetoes events caused by bot
// accounts and Maintenance vetoes everything while the maintenance flag is on,
// except the actors and actions listed in Config.Maintenance. The chain runs
// once per event, in registration order, and stops at the first veto. A guard
// that fails or panics vetoes the event and is logged as a guard fault.
//
// # State
//
// Store is a small JSON key/value store with seed-once semantics: Set
// overwrites, Add only writes absent keys. SQLite is the default backend;
// Redis and an in-memory store are available through Config.State.
//
// # Event bus
//
// Events travel from the gateway reader to the dispatcher over a Watermill
// pub/sub selected by Config.EventBus: Go channels (default, ordered), NATS,
// Kafka or RabbitMQ. Delivered events are never redelivered, so each handler
// sees an event at most once.
//
// # Logging
//
// Logger writes "[YYYY-MM-DD HH:MM:SS] message" lines to stdout or stderr,
// appends them to <logs.dir>/<level>.log and mirrors category records to a
// remote channel. Sink failures are counted and swallowed. ServiceLogger is
// the structured logger for operational messages; it wraps log/slog through
// Watermill's adapter.
package botcore
