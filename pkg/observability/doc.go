/*
Package observability exports dispatcher telemetry as Prometheus metrics.

Metrics.Hooks plugs into dispatch.WithHooks; the HTTP adapter serves the
registry on /metrics.
*/
package observability
