package dataset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Deterministic(t *testing.T) {
	set, err := Open("testdata/iris_training.csv")
	require.NoError(t, err)

	a1, b1 := set.Split(0.8, rand.New(rand.NewSource(7)))
	a2, b2 := set.Split(0.8, rand.New(rand.NewSource(7)))

	assert.Equal(t, 96, a1.Len())
	assert.Equal(t, 24, b1.Len())
	assert.Equal(t, a1.Examples, a2.Examples)
	assert.Equal(t, b1.Examples, b2.Examples)
}

func TestNormalizer(t *testing.T) {
	set := &Set{
		Schema: Schema{Name: "t", Features: []string{"a", "b"}, Classes: []string{"x", "y"}},
		Examples: []Example{
			{Features: []float64{0, 5}, Label: 0},
			{Features: []float64{10, 5}, Label: 1},
		},
	}

	n := NewNormalizer(set)

	out, err := n.Apply([]float64{0, 5})
	require.NoError(t, err)
	assert.InDelta(t, -0.5, out[0], 1e-12)
	// constant column keeps unit scale, shifted by its mean
	assert.InDelta(t, 0, out[1], 1e-12)

	out, err = n.Apply([]float64{10, 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0], 1e-12)

	_, err = n.Apply([]float64{1})
	require.Error(t, err)
}

func TestInputFn_EpochsAndShortBatch(t *testing.T) {
	set := &Set{
		Schema: Schema{Name: "t", Features: []string{"a"}, Classes: []string{"x", "y"}},
		Examples: []Example{
			{Features: []float64{1}, Label: 0},
			{Features: []float64{2}, Label: 1},
			{Features: []float64{3}, Label: 0},
			{Features: []float64{4}, Label: 1},
			{Features: []float64{5}, Label: 0},
		},
	}

	fn := NewInputFn(set, 2, 2, false, 1)

	var batches int
	var rows int
	for {
		b, err := fn()
		if err == ErrEndOfInput {
			break
		}
		require.NoError(t, err)
		batches++
		rows += len(b.X)
		require.Equal(t, len(b.X), len(b.Y))
	}

	// 5 rows / batch of 2 = 3 batches per epoch, last one short
	assert.Equal(t, 6, batches)
	assert.Equal(t, 10, rows)
}

func TestInputFn_BatchLargerThanSet(t *testing.T) {
	set := &Set{
		Schema: Schema{Name: "t", Features: []string{"a"}, Classes: []string{"x", "y"}},
		Examples: []Example{
			{Features: []float64{1}, Label: 0},
			{Features: []float64{2}, Label: 1},
		},
	}

	fn := NewInputFn(set, 100, 3, false, 1)
	for epoch := 0; epoch < 3; epoch++ {
		b, err := fn()
		require.NoError(t, err)
		assert.Len(t, b.X, 2)
	}
	_, err := fn()
	assert.Equal(t, ErrEndOfInput, err)
}

func TestInputFn_ShuffleDeterminism(t *testing.T) {
	set, err := Open("testdata/iris_test.csv")
	require.NoError(t, err)

	collect := func(seed int64) [][]float64 {
		fn := NewInputFn(set, 8, 1, true, seed)
		var xs [][]float64
		for {
			b, err := fn()
			if err == ErrEndOfInput {
				return xs
			}
			require.NoError(t, err)
			xs = append(xs, b.X...)
		}
	}

	assert.Equal(t, collect(42), collect(42))
	assert.NotEqual(t, collect(42), collect(43))
}

func TestServingInput(t *testing.T) {
	si := ServingInput{Features: 4}
	assert.NoError(t, si.Check([]float64{6.4, 3.2, 4.5, 1.5}))
	assert.Error(t, si.Check([]float64{6.4, 3.2}))
}

func TestInputFn_EmptySet(t *testing.T) {
	set := &Set{Schema: Iris()}
	fn := NewInputFn(set, 4, 2, true, 1)
	_, err := fn()
	assert.Equal(t, ErrEndOfInput, err)
}
