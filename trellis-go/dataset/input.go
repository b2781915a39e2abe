package dataset

import (
	"math/rand"

	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// ErrEndOfInput is returned by an InputFn once every epoch is exhausted.
var ErrEndOfInput = errors.New("end of input")

// Batch is one mini-batch of training data.
type Batch struct {
	X [][]float64
	Y []int
}

// InputFn produces mini-batches for training. It returns ErrEndOfInput
// after the configured number of epochs.
type InputFn func() (*Batch, error)

// NewInputFn returns an InputFn streaming batchSize examples at a time for
// the given number of epochs. With shuffle set, the example order is
// re-permuted each epoch using the seed. The last batch of an epoch may be
// short.
func NewInputFn(s *Set, batchSize, epochs int, shuffle bool, seed int64) InputFn {
	if batchSize < 1 {
		batchSize = 1
	}
	rng := rand.New(rand.NewSource(seed))

	order := make([]int, s.Len())
	for i := range order {
		order[i] = i
	}

	var epoch, pos int
	reshuffled := false

	return func() (*Batch, error) {
		if s.Len() == 0 || epoch >= epochs {
			return nil, ErrEndOfInput
		}

		if pos == 0 && shuffle && !reshuffled {
			rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
			reshuffled = true
		}

		end := pos + batchSize
		if end > len(order) {
			end = len(order)
		}

		b := &Batch{
			X: make([][]float64, 0, end-pos),
			Y: make([]int, 0, end-pos),
		}
		for _, idx := range order[pos:end] {
			ex := s.Examples[idx]
			b.X = append(b.X, ex.Features)
			b.Y = append(b.Y, ex.Label)
		}

		pos = end
		if pos == len(order) {
			pos = 0
			epoch++
			reshuffled = false
		}
		return b, nil
	}
}

// ServingInput declares the tensor shape an endpoint accepts: one numeric
// vector of the given length per instance.
type ServingInput struct {
	Features int `json:"features"`
}

// Check validates one instance vector against the declaration.
func (si ServingInput) Check(x []float64) error {
	if len(x) != si.Features {
		return errors.Errorf("instance has %d features, endpoint expects %d", len(x), si.Features)
	}
	return nil
}
