// Package metrics exposes the bridge's Prometheus instrumentation.
//
// A Collector owns its own registry so tests and multiple bridges in one
// process never collide on the default registerer. It implements the
// reconcile.Metrics interface and serves the registry over HTTP.
package metrics
