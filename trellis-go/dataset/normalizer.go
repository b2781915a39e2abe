package dataset

import (
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// Normalizer rescales feature vectors with x' = (x + Offset[i]) * Scale[i].
// It is fitted on a training set and saved alongside the model weights so
// serving applies the exact transform training saw.
type Normalizer struct {
	Offset []float64 `json:"offset"`
	Scale  []float64 `json:"scale"`
}

// NewNormalizer fits a min-max normalizer on the set: features are shifted
// by the column mean and scaled by the column range. Constant columns get
// unit scale.
func NewNormalizer(s *Set) *Normalizer {
	stats := s.Stats()
	n := &Normalizer{
		Offset: make([]float64, len(stats)),
		Scale:  make([]float64, len(stats)),
	}
	for i, cs := range stats {
		n.Offset[i] = -cs.Mean
		if r := cs.Max - cs.Min; r > 0 {
			n.Scale[i] = 1 / r
		} else {
			n.Scale[i] = 1
		}
	}
	return n
}

// Apply returns the normalized copy of x.
func (n *Normalizer) Apply(x []float64) ([]float64, error) {
	if len(x) != len(n.Offset) {
		return nil, errors.Errorf("normalizer fitted on %d features, got %d", len(n.Offset), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v + n.Offset[i]) * n.Scale[i]
	}
	return out, nil
}

// Transform returns a copy of the set with every feature vector normalized.
func (n *Normalizer) Transform(s *Set) (*Set, error) {
	out := &Set{Schema: s.Schema, Examples: make([]Example, len(s.Examples))}
	for i, ex := range s.Examples {
		fs, err := n.Apply(ex.Features)
		if err != nil {
			return nil, errors.Wrapf(err, "example %d", i)
		}
		out.Examples[i] = Example{Features: fs, Label: ex.Label}
	}
	return out, nil
}
