package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusProvider exports instruments as Prometheus collectors.
// Counters map to prometheus.Counter, up/down counters to prometheus.Gauge and
// histograms to prometheus.Histogram with the default buckets.
type PrometheusProvider struct {
	reg       prometheus.Registerer
	namespace string

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewPrometheusProvider creates a provider registering collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusProvider(reg prometheus.Registerer, namespace string) *PrometheusProvider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusProvider{
		reg:        reg,
		namespace:  namespace,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

func help(name string, cfg InstrumentConfig) string {
	if cfg.Description != "" {
		return cfg.Description
	}
	return name
}

// register registers c, returning the already registered collector when an
// equal one exists (e.g. two providers sharing a registry).
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		// Unregistrable collectors still record; they are just not exported.
	}
	return c
}

// Counter returns a prometheus-backed counter.
func (p *PrometheusProvider) Counter(name string, opts ...InstrumentOption) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return promCounter{c}
	}
	cfg := applyOptions(opts)
	c := register[prometheus.Counter](p.reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   p.namespace,
		Name:        name,
		Help:        help(name, cfg),
		ConstLabels: cfg.Attributes,
	}))
	p.counters[name] = c
	return promCounter{c}
}

// UpDownCounter returns a prometheus gauge.
func (p *PrometheusProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return promGauge{g}
	}
	cfg := applyOptions(opts)
	g := register[prometheus.Gauge](p.reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   p.namespace,
		Name:        name,
		Help:        help(name, cfg),
		ConstLabels: cfg.Attributes,
	}))
	p.gauges[name] = g
	return promGauge{g}
}

// Histogram returns a prometheus histogram with default buckets.
func (p *PrometheusProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return promHistogram{h}
	}
	cfg := applyOptions(opts)
	h := register[prometheus.Histogram](p.reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   p.namespace,
		Name:        name,
		Help:        help(name, cfg),
		ConstLabels: cfg.Attributes,
		Buckets:     prometheus.DefBuckets,
	}))
	p.histograms[name] = h
	return promHistogram{h}
}

type promCounter struct{ c prometheus.Counter }

// Add ignores negative deltas; prometheus counters are monotonic.
func (c promCounter) Add(n int64) {
	if n > 0 {
		c.c.Add(float64(n))
	}
}

type promGauge struct{ g prometheus.Gauge }

func (g promGauge) Add(n int64) { g.g.Add(float64(n)) }

type promHistogram struct{ h prometheus.Histogram }

func (h promHistogram) Record(v float64) { h.h.Observe(v) }
