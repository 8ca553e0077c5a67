// Package metrics provides the observability hooks for pipeline runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so callers never need nil checks:
//
//	deps := stage.Deps{Recorder: metrics.NoopRecorder{}}
//
// When metrics are enabled the driver swaps in a PrometheusRecorder backed by
// its own registry and, after the run, writes the registry to a node-exporter
// textfile with WriteTextfile. There is no HTTP endpoint; the driver is a
// short-lived process.
package metrics
