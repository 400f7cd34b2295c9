package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus holds the exported series. It owns its registry so several
// instances can coexist in tests.
type Prometheus struct {
	registry   *prometheus.Registry
	redirects  *prometheus.CounterVec
	fallbacks  *prometheus.CounterVec
	refreshes  *prometheus.CounterVec
	candidates prometheus.Gauge
	botHits    prometheus.Counter
	resolve    prometheus.Histogram
}

func NewPrometheus(namespace string) *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p := &Prometheus{
		registry: registry,
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirects served, by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Redirects to the fallback destination, by reason.",
		}, []string{"reason"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refreshes_total",
			Help:      "Attempts to obtain a fresh link list, by result.",
		}, []string{"result"}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_candidates",
			Help:      "Candidates in the current link list.",
		}),
		botHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_hits_total",
			Help:      "Crawler requests answered with the placeholder page.",
		}),
		resolve: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time to pick a destination.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}

	registry.MustRegister(p.redirects, p.fallbacks, p.refreshes, p.candidates, p.botHits, p.resolve)

	return p
}

// Observe applies event to the exported series.
func (p *Prometheus) Observe(event MetricEvent) {
	switch event.Type {
	case EventRedirectServed:
		p.redirects.WithLabelValues("selected").Inc()
		p.resolve.Observe(event.Duration.Seconds())

	case EventFallbackServed:
		p.redirects.WithLabelValues("fallback").Inc()
		p.fallbacks.WithLabelValues(event.Reason).Inc()
		p.resolve.Observe(event.Duration.Seconds())

	case EventCacheRefreshed:
		switch {
		case event.Failed:
			p.refreshes.WithLabelValues("error").Inc()
			return
		case event.FromStore:
			p.refreshes.WithLabelValues("store").Inc()
		default:
			p.refreshes.WithLabelValues("fetched").Inc()
		}
		p.candidates.Set(float64(event.Candidates))

	case EventBotServed:
		p.botHits.Inc()
	}
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
