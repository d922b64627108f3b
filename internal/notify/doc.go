// Package notify delivers ownership notifications to downstream sinks.
//
// Every sink implements registry.Notifier. Sinks run after the changeset
// is durable, so a sink failure never undoes an operation; the store's
// transfers table is the outbox from which Relay can redeliver.
package notify
