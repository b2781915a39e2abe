// Package dataset defines the tabular dataset model used to train and serve
// classifiers: a schema naming features and classes, in-memory example sets,
// the CSV codec, and the mini-batch input pipeline.
package dataset

import (
	"math"
	"math/rand"

	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// Schema names the feature columns and the label classes of a dataset.
type Schema struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
	Classes  []string `json:"classes"`
}

// NumFeatures returns the number of feature columns.
func (s Schema) NumFeatures() int { return len(s.Features) }

// NumClasses returns the number of label classes.
func (s Schema) NumClasses() int { return len(s.Classes) }

// ClassIndex returns the index of the named class, or -1.
func (s Schema) ClassIndex(name string) int {
	for i, c := range s.Classes {
		if c == name {
			return i
		}
	}
	return -1
}

// Validate checks that the schema names at least one feature and two classes.
func (s Schema) Validate() error {
	if len(s.Features) == 0 {
		return errors.Errorf("schema %s has no features", s.Name)
	}
	if len(s.Classes) < 2 {
		return errors.Errorf("schema %s needs at least 2 classes, has %d", s.Name, len(s.Classes))
	}
	return nil
}

// Example is one labeled feature vector.
type Example struct {
	Features []float64 `json:"features"`
	Label    int       `json:"label"`
}

// Set is an in-memory dataset: a schema plus labeled examples.
type Set struct {
	Schema   Schema    `json:"schema"`
	Examples []Example `json:"examples"`
}

// Len returns the number of examples.
func (s *Set) Len() int { return len(s.Examples) }

// Features returns the feature matrix, one row per example.
func (s *Set) Features() [][]float64 {
	out := make([][]float64, len(s.Examples))
	for i, ex := range s.Examples {
		out[i] = ex.Features
	}
	return out
}

// Labels returns the label column.
func (s *Set) Labels() []int {
	out := make([]int, len(s.Examples))
	for i, ex := range s.Examples {
		out[i] = ex.Label
	}
	return out
}

// ClassCounts returns the number of examples per class.
func (s *Set) ClassCounts() []int {
	counts := make([]int, s.Schema.NumClasses())
	for _, ex := range s.Examples {
		if ex.Label >= 0 && ex.Label < len(counts) {
			counts[ex.Label]++
		}
	}
	return counts
}

// Shuffle permutes the examples in place using the given source.
func (s *Set) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(s.Examples), func(i, j int) {
		s.Examples[i], s.Examples[j] = s.Examples[j], s.Examples[i]
	})
}

// Split partitions the set into two: the first containing frac of the
// examples, the second the remainder. The receiver is not modified. Pass a
// seeded source for a deterministic split.
func (s *Set) Split(frac float64, rng *rand.Rand) (*Set, *Set) {
	perm := rng.Perm(len(s.Examples))
	n := int(math.Round(frac * float64(len(s.Examples))))

	first := &Set{Schema: s.Schema, Examples: make([]Example, 0, n)}
	second := &Set{Schema: s.Schema, Examples: make([]Example, 0, len(s.Examples)-n)}
	for i, p := range perm {
		if i < n {
			first.Examples = append(first.Examples, s.Examples[p])
		} else {
			second.Examples = append(second.Examples, s.Examples[p])
		}
	}
	return first, second
}

// ColumnStats holds per-feature-column aggregates.
type ColumnStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats computes per-column min/max/mean over the set.
func (s *Set) Stats() []ColumnStats {
	cols := s.Schema.NumFeatures()
	stats := make([]ColumnStats, cols)
	for i := range stats {
		stats[i].Min = math.Inf(1)
		stats[i].Max = math.Inf(-1)
	}
	for _, ex := range s.Examples {
		for i, v := range ex.Features {
			if i >= cols {
				break
			}
			if v < stats[i].Min {
				stats[i].Min = v
			}
			if v > stats[i].Max {
				stats[i].Max = v
			}
			stats[i].Mean += v
		}
	}
	if n := float64(len(s.Examples)); n > 0 {
		for i := range stats {
			stats[i].Mean /= n
		}
	}
	return stats
}

// Validate checks every example against the schema.
func (s *Set) Validate() error {
	if err := s.Schema.Validate(); err != nil {
		return err
	}
	for i, ex := range s.Examples {
		if len(ex.Features) != s.Schema.NumFeatures() {
			return errors.Errorf("example %d has %d features, schema %s expects %d",
				i, len(ex.Features), s.Schema.Name, s.Schema.NumFeatures())
		}
		if ex.Label < 0 || ex.Label >= s.Schema.NumClasses() {
			return errors.Errorf("example %d has label %d outside [0,%d)",
				i, ex.Label, s.Schema.NumClasses())
		}
	}
	return nil
}
