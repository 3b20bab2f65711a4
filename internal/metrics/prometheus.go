package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder on Prometheus collectors. A nil
// receiver is safe; every method no-ops so wiring can stay unconditional.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	jobDuration   prom.Histogram
	jobOutcomes   *prom.CounterVec
	llmCalls      *prom.CounterVec
	retries       *prom.CounterVec
	cacheEvents   *prom.CounterVec
	artifacts     *prom.CounterVec
	jobActive     prom.Gauge
}

// NewPrometheusRecorder builds the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "webclip",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		jobDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "webclip",
			Name:      "job_duration_seconds",
			Help:      "Total clip job duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		jobOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "webclip",
			Name:      "job_outcomes_total",
			Help:      "Finished jobs by outcome",
		}, []string{"outcome"}),
		llmCalls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "webclip",
			Name:      "llm_calls_total",
			Help:      "Model calls by kind and result",
		}, []string{"kind", "result"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "webclip",
			Name:      "retries_total",
			Help:      "Retried operations by stage",
		}, []string{"stage"}),
		cacheEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "webclip",
			Name:      "selector_cache_events_total",
			Help:      "Selector cache hits, misses, stores and invalidations",
		}, []string{"event"}),
		artifacts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "webclip",
			Name:      "artifacts_total",
			Help:      "Generated artifacts by output format",
		}, []string{"format"}),
		jobActive: prom.NewGauge(prom.GaugeOpts{
			Namespace: "webclip",
			Name:      "job_active",
			Help:      "Whether a clip job is currently running",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.jobDuration, pr.jobOutcomes, pr.llmCalls,
		pr.retries, pr.cacheEvents, pr.artifacts, pr.jobActive)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveJobDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.jobDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobOutcome(outcome string) {
	if p == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncLLMCall(kind string, success bool) {
	if p == nil {
		return
	}
	result := "failed"
	if success {
		result = "success"
	}
	p.llmCalls.WithLabelValues(kind, result).Inc()
}

func (p *PrometheusRecorder) IncRetry(stage string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncSelectorCache(event string) {
	if p == nil {
		return
	}
	p.cacheEvents.WithLabelValues(event).Inc()
}

func (p *PrometheusRecorder) IncArtifact(format string) {
	if p == nil {
		return
	}
	p.artifacts.WithLabelValues(format).Inc()
}

func (p *PrometheusRecorder) SetJobActive(active bool) {
	if p == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	p.jobActive.Set(v)
}

// HTTPHandler serves the registry in Prometheus exposition format.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
