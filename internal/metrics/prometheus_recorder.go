package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	lastBuild     prom.Gauge
	triggers      *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docgen",
			Name:      "build_duration_seconds",
			Help:      "Wall time of documentation generator runs",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docgen",
			Name:      "build_outcomes_total",
			Help:      "Documentation builds by final outcome",
		}, []string{"outcome"}),
		lastBuild: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docgen",
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time the last documentation build finished",
		}),
		triggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docgen",
			Name:      "build_triggers_total",
			Help:      "Build requests by trigger source",
		}, []string{"trigger"}),
	}
	reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.lastBuild, pr.triggers)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome Outcome) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetLastBuild(t time.Time) {
	p.lastBuild.Set(float64(t.Unix()))
}

func (p *PrometheusRecorder) IncTrigger(trigger string) {
	p.triggers.WithLabelValues(trigger).Inc()
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
