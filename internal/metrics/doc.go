// Package metrics records documentation build metrics. The Recorder interface
// keeps callers independent of Prometheus; NoopRecorder is the default when
// metrics are not configured.
package metrics
