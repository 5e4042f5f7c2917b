package statsd

import (
	"sync"
	"time"
)

// Metric is one recorded emission.
type Metric struct {
	Kind  string // "count", "gauge" or "timing"
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder is an in-memory Sink for tests.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

var _ Sink = (*Recorder)(nil)

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) add(m Metric) {
	r.mu.Lock()
	r.metrics = append(r.metrics, m)
	r.mu.Unlock()
}

// Count records a counter increment.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Metric{Kind: "count", Name: name, Value: float64(value), Tags: cloneTags(tags)})
}

// Gauge records a gauge value.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Metric{Kind: "gauge", Name: name, Value: value, Tags: cloneTags(tags)})
}

// Timing records a duration in milliseconds.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Metric{Kind: "timing", Name: name, Value: float64(value) / float64(time.Millisecond), Tags: cloneTags(tags)})
}

// Metrics returns a copy of everything recorded so far.
func (r *Recorder) Metrics() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// CountOf sums counter values recorded under name.
func (r *Recorder) CountOf(name string) int64 {
	return r.CountTagged(name, "", "")
}

// CountTagged sums counter values under name whose tag key equals value. An empty key matches all.
func (r *Recorder) CountTagged(name, key, value string) int64 {
	var total int64
	for _, m := range r.Metrics() {
		if m.Kind != "count" || m.Name != name {
			continue
		}
		if key != "" && m.Tags[key] != value {
			continue
		}
		total += int64(m.Value)
	}
	return total
}

// Timings returns the recorded timing values for name in milliseconds.
func (r *Recorder) Timings(name string) []float64 {
	var out []float64
	for _, m := range r.Metrics() {
		if m.Kind == "timing" && m.Name == name {
			out = append(out, m.Value)
		}
	}
	return out
}
