// Package prom exports cache and pipeline hooks as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/thumbcache/cache"
	"github.com/IvanBrykalov/thumbcache/photoerr"
	"github.com/IvanBrykalov/thumbcache/pipeline"
)

// Adapter implements cache.Metrics and pipeline.Metrics.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	sizeEnt  prometheus.Gauge
	sizeCost prometheus.Gauge

	requests  *prometheus.CounterVec
	coalesced prometheus.Counter
	loads     *prometheus.HistogramVec
	inflight  prometheus.Gauge
}

// New constructs and registers the adapter.
//   - reg:          registry (nil => prometheus.DefaultRegisterer)
//   - ns:           namespace; cache metrics use subsystem "cache",
//     pipeline metrics subsystem "pipeline"
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(sub, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	gauge := func(sub, name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}

	a := &Adapter{
		hits:   counter("cache", "hits_total", "Image cache hits"),
		misses: counter("cache", "misses_total", "Image cache misses"),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "cache", Name: "evictions_total",
			Help: "Image cache evictions by reason", ConstLabels: constLabels,
		}, []string{"reason"}),
		sizeEnt:  gauge("cache", "size_entries", "Resident images"),
		sizeCost: gauge("cache", "size_cost", "Total resident cost (decoded bytes when MaxCost is set)"),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "pipeline", Name: "requests_total",
			Help: "Image requests by outcome of the synchronous cache probe", ConstLabels: constLabels,
		}, []string{"result"}),
		coalesced: counter("pipeline", "coalesced_total", "Requests that joined an in-flight load"),
		loads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "pipeline", Name: "load_duration_seconds",
			Help:        "Fetch+decode duration by outcome",
			Buckets:     prometheus.ExponentialBuckets(0.01, 2, 12),
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		inflight: gauge("pipeline", "inflight_keys", "Keys with a load in progress"),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost,
		a.requests, a.coalesced, a.loads, a.inflight)
	return a
}

// Hit increments the cache hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the cache miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict counts an eviction by reason.
func (a *Adapter) Evict(r cache.EvictReason) { a.evicts.WithLabelValues(r.String()).Inc() }

// Size updates the cache size gauges.
func (a *Adapter) Size(entries int, cost int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeCost.Set(float64(cost))
}

// Request counts a pipeline request.
func (a *Adapter) Request(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	a.requests.WithLabelValues(result).Inc()
}

// Coalesced counts a request that joined an in-flight load.
func (a *Adapter) Coalesced() { a.coalesced.Inc() }

// Load observes a finished load. Failures are labelled by error kind.
func (a *Adapter) Load(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = photoerr.Kind(err)
	}
	a.loads.WithLabelValues(outcome).Observe(d.Seconds())
}

// InFlight sets the in-flight gauge.
func (a *Adapter) InFlight(n int) { a.inflight.Set(float64(n)) }

var (
	_ cache.Metrics    = (*Adapter)(nil)
	_ pipeline.Metrics = (*Adapter)(nil)
)
