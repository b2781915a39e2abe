// Package status tracks named counters, hit ratios, and duration samples,
// grouped into sections. Sections register themselves in a process-wide
// registry so a single /status handler can report on every component.
package status

import (
	"sync"
	"time"
)

var (
	mu       sync.Mutex
	sections = make(map[string]*Section)
)

// Section is a named group of metrics, typically one per component.
type Section struct {
	Name string

	mu       sync.Mutex
	counters map[string]*Counter
	ratios   map[string]*Ratio
	samples  map[string]*SampleDuration
}

// NewSection returns the section with the given name, creating it if needed.
func NewSection(name string) *Section {
	mu.Lock()
	defer mu.Unlock()
	if s, ok := sections[name]; ok {
		return s
	}
	s := &Section{
		Name:     name,
		counters: make(map[string]*Counter),
		ratios:   make(map[string]*Ratio),
		samples:  make(map[string]*SampleDuration),
	}
	sections[name] = s
	return s
}

// Counter returns the named counter in this section, creating it if needed.
func (s *Section) Counter(name string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		c = &Counter{}
		s.counters[name] = c
	}
	return c
}

// Ratio returns the named ratio in this section, creating it if needed.
func (s *Section) Ratio(name string) *Ratio {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ratios[name]
	if !ok {
		r = &Ratio{}
		s.ratios[name] = r
	}
	return r
}

// SampleDuration returns the named duration sample in this section,
// creating it if needed.
func (s *Section) SampleDuration(name string) *SampleDuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.samples[name]
	if !ok {
		d = &SampleDuration{}
		s.samples[name] = d
	}
	return d
}

// SectionSnapshot is a point-in-time copy of a section's metrics.
type SectionSnapshot struct {
	Counters map[string]int64         `json:"counters,omitempty"`
	Ratios   map[string]RatioValue    `json:"ratios,omitempty"`
	Samples  map[string]DurationStats `json:"samples,omitempty"`
}

// Snapshot copies the current value of every metric in every section.
func Snapshot() map[string]SectionSnapshot {
	mu.Lock()
	names := make([]*Section, 0, len(sections))
	for _, s := range sections {
		names = append(names, s)
	}
	mu.Unlock()

	out := make(map[string]SectionSnapshot, len(names))
	for _, s := range names {
		out[s.Name] = s.snapshot()
	}
	return out
}

func (s *Section) snapshot() SectionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SectionSnapshot{}
	if len(s.counters) > 0 {
		snap.Counters = make(map[string]int64, len(s.counters))
		for name, c := range s.counters {
			snap.Counters[name] = c.Value()
		}
	}
	if len(s.ratios) > 0 {
		snap.Ratios = make(map[string]RatioValue, len(s.ratios))
		for name, r := range s.ratios {
			snap.Ratios[name] = r.Value()
		}
	}
	if len(s.samples) > 0 {
		snap.Samples = make(map[string]DurationStats, len(s.samples))
		for name, d := range s.samples {
			snap.Samples[name] = d.Stats()
		}
	}
	return snap
}

// Counter is a monotonically increasing (or explicitly set) int64 metric.
type Counter struct {
	mu    sync.Mutex
	value int64
}

// Add increments the counter by n.
func (c *Counter) Add(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += n
}

// Set overwrites the counter value.
func (c *Counter) Set(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = n
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// RatioValue is the snapshot form of a Ratio.
type RatioValue struct {
	Hits  int64   `json:"hits"`
	Total int64   `json:"total"`
	Rate  float64 `json:"rate"`
}

// Ratio tracks hits out of a total, e.g. cache hit rates or
// prediction-success rates.
type Ratio struct {
	mu    sync.Mutex
	hits  int64
	total int64
}

// Hit records a hit.
func (r *Ratio) Hit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
	r.total++
}

// Miss records a miss.
func (r *Ratio) Miss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
}

// Value returns the current hits, total, and rate.
func (r *Ratio) Value() RatioValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := RatioValue{Hits: r.hits, Total: r.total}
	if r.total > 0 {
		v.Rate = float64(r.hits) / float64(r.total)
	}
	return v
}

// DurationStats is the snapshot form of a SampleDuration.
type DurationStats struct {
	Count int64  `json:"count"`
	Avg   string `json:"avg"`
	Min   string `json:"min"`
	Max   string `json:"max"`
}

// SampleDuration aggregates observed durations.
type SampleDuration struct {
	mu    sync.Mutex
	count int64
	sum   time.Duration
	min   time.Duration
	max   time.Duration
}

// Record adds one observation.
func (s *SampleDuration) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.sum += d
}

// RecordSince adds one observation measured from start to now. Use with
// defer at the top of the timed function.
func (s *SampleDuration) RecordSince(start time.Time) {
	s.Record(time.Since(start))
}

// Stats returns the current aggregates.
func (s *SampleDuration) Stats() DurationStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := DurationStats{Count: s.count}
	if s.count > 0 {
		st.Avg = (s.sum / time.Duration(s.count)).String()
		st.Min = s.min.String()
		st.Max = s.max.String()
	}
	return st
}
