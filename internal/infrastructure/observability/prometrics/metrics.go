package prometrics

import (
	"errors"
	"sync"

	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// missingLabel fills declared label keys a caller did not pass.
const missingLabel = "unknown"

// Registry creates Prometheus-backed instruments behind the observability ports.
type Registry interface {
	Counter(name string, help string, labelKeys ...string) observability.Counter
	Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	mu         sync.Mutex
	counters   map[string]*counter
	histograms map[string]*histogram
	namespace  string
	subsystem  string
	reg        prometheus.Registerer
}

// New registers instruments on reg; nil means the process-wide default registerer.
func New(namespace, subsystem string, reg prometheus.Registerer) Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
		namespace:  namespace,
		subsystem:  subsystem,
		reg:        reg,
	}
}

// labelSet maps caller labels onto the declared keys. Undeclared keys are
// dropped and absent ones become missingLabel, so a sloppy call site costs a
// series instead of a panic inside With.
type labelSet []string

func (ks labelSet) of(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ks))
	for _, k := range ks {
		m[k] = missingLabel
	}
	for _, l := range ls {
		if _, ok := m[l.Key]; ok {
			m[l.Key] = l.Value
		}
	}
	return m
}

type counter struct {
	v    *prometheus.CounterVec
	keys labelSet
}

func (c *counter) Add(d float64, labels ...observability.Label) {
	c.v.With(c.keys.of(labels)).Add(d)
}

func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return c.v.With(c.keys.of(labels))
}

type histogram struct {
	v    *prometheus.HistogramVec
	keys labelSet
}

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.v.With(h.keys.of(labels)).Observe(v)
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return h.v.With(h.keys.of(labels))
}

func (r *registry) Counter(name string, help string, labelKeys ...string) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help,
	}, labelKeys)
	c := &counter{v: register(r.reg, cv), keys: labelKeys}
	r.counters[name] = c
	return c
}

func (r *registry) Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labelKeys)
	h := &histogram{v: register(r.reg, hv), keys: labelKeys}
	r.histograms[name] = h
	return h
}

// register adopts an identical collector registered earlier on reg, which
// happens when two registries share the default registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
