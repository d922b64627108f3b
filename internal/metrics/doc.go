// Package metrics exposes registry activity as Prometheus collectors.
//
// Metrics implements registry.Observer and engine.DepthObserver so it can
// be passed straight to registry.WithObserver and engine.WithDepthObserver.
package metrics
