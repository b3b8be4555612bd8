// Package obstest provides an in-memory Observability for tests.
package obstest

import (
	"sort"
	"strings"
	"sync"

	"github.com/Zhima-Mochi/clubshop/internal/observability"
)

// Entry is one captured log line.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// Recorder captures logs and metric samples. The zero value is not usable; call New.
type Recorder struct {
	mu       sync.Mutex
	entries  []Entry
	counters map[string]float64
	samples  map[string]int
}

func New() *Recorder {
	return &Recorder{
		counters: make(map[string]float64),
		samples:  make(map[string]int),
	}
}

func (r *Recorder) Tracer() observability.Tracer   { return observability.NopTracer() }
func (r *Recorder) Logger() observability.Logger   { return &logger{r: r} }
func (r *Recorder) Metrics() observability.Metrics { return r }

func (r *Recorder) Counter(name observability.MetricKey) observability.Counter {
	return &counter{r: r, name: string(name)}
}

func (r *Recorder) Histogram(name observability.MetricKey) observability.Histogram {
	return &histogram{r: r, name: string(name)}
}

// CounterValue sums the counter across label sets that contain every given label.
func (r *Recorder) CounterValue(name observability.MetricKey, labels ...observability.Label) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total float64
	for key, v := range r.counters {
		if matches(key, string(name), labels) {
			total += v
		}
	}
	return total
}

// Entries returns the log lines with the given message.
func (r *Recorder) Entries(msg string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) log(level, msg string, bound, fields []observability.Field) {
	m := make(map[string]any, len(bound)+len(fields))
	for _, f := range bound {
		m[f.Key] = f.Value
	}
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: m})
	r.mu.Unlock()
}

func (r *Recorder) add(name string, delta float64, labels []observability.Label) {
	r.mu.Lock()
	r.counters[seriesKey(name, labels)] += delta
	r.mu.Unlock()
}

func (r *Recorder) observe(name string, labels []observability.Label) {
	r.mu.Lock()
	r.samples[seriesKey(name, labels)]++
	r.mu.Unlock()
}

type logger struct {
	r      *Recorder
	fields []observability.Field
}

func (l *logger) With(fields ...observability.Field) observability.Logger {
	return &logger{r: l.r, fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}
func (l *logger) Debug(msg string, fields ...observability.Field) { l.r.log("debug", msg, l.fields, fields) }
func (l *logger) Info(msg string, fields ...observability.Field)  { l.r.log("info", msg, l.fields, fields) }
func (l *logger) Warn(msg string, fields ...observability.Field)  { l.r.log("warn", msg, l.fields, fields) }
func (l *logger) Error(msg string, fields ...observability.Field) { l.r.log("error", msg, l.fields, fields) }

type counter struct {
	r    *Recorder
	name string
}

func (c *counter) Add(delta float64, labels ...observability.Label) { c.r.add(c.name, delta, labels) }
func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return &bound{r: c.r, name: c.name, labels: labels}
}

type histogram struct {
	r    *Recorder
	name string
}

func (h *histogram) Observe(_ float64, labels ...observability.Label) { h.r.observe(h.name, labels) }
func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return &bound{r: h.r, name: h.name, labels: labels}
}

type bound struct {
	r      *Recorder
	name   string
	labels []observability.Label
}

func (b *bound) Add(delta float64)   { b.r.add(b.name, delta, b.labels) }
func (b *bound) Observe(_ float64)  { b.r.observe(b.name, b.labels) }

func seriesKey(name string, labels []observability.Label) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Key+"="+l.Value)
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}

func matches(key, name string, labels []observability.Label) bool {
	if !strings.HasPrefix(key, name+"{") {
		return false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(key, name+"{"), "}")
	have := strings.Split(body, ",")
	for _, want := range labels {
		found := false
		for _, h := range have {
			if h == want.Key+"="+want.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
