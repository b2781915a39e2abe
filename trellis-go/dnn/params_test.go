package dnn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellis-ml/trellis/trellis-go/dataset"
)

func twoClassParams() *Params {
	// identity network: logits == inputs
	return &Params{
		Schema: dataset.Schema{
			Name:     "toy",
			Features: []string{"a", "b"},
			Classes:  []string{"neg", "pos"},
		},
		Normalizer: &dataset.Normalizer{Offset: []float64{0, 0}, Scale: []float64{1, 1}},
		Activation: "softplus",
		Layers: []Layer{
			{In: 2, Out: 2, W: []float64{1, 0, 0, 1}, B: []float64{0, 0}},
		},
	}
}

func TestForward_IdentityNetwork(t *testing.T) {
	p := twoClassParams()
	require.NoError(t, p.Validate())

	scores, err := p.Forward([]float64{2, 0})
	require.NoError(t, err)
	require.Len(t, scores, 2)

	want0 := math.Exp(2) / (math.Exp(2) + 1)
	assert.InDelta(t, want0, scores[0], 1e-12)
	assert.InDelta(t, 1-want0, scores[1], 1e-12)
	assert.InDelta(t, 1, scores[0]+scores[1], 1e-9)
}

func TestForward_RejectsWrongShape(t *testing.T) {
	p := twoClassParams()
	_, err := p.Forward([]float64{1, 2, 3})
	require.Error(t, err)
}

func TestPredict_Deterministic(t *testing.T) {
	p := twoClassParams()
	a, err := p.Predict([]float64{0.3, 1.7})
	require.NoError(t, err)
	b, err := p.Predict([]float64{0.3, 1.7})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, a.Class)
	assert.Equal(t, "pos", a.Label)
}

func TestPredictBatch_MatchesSingle(t *testing.T) {
	p := &Params{
		Schema: dataset.Schema{
			Name:     "toy",
			Features: []string{"a", "b"},
			Classes:  []string{"neg", "pos"},
		},
		Normalizer: &dataset.Normalizer{Offset: []float64{-1, 2}, Scale: []float64{0.5, 2}},
		Activation: "softplus",
		Layers: []Layer{
			{In: 2, Out: 3, W: []float64{0.1, -0.2, 0.3, 0.4, 0.5, -0.6}, B: []float64{0.01, 0.02, 0.03}},
			{In: 3, Out: 2, W: []float64{1, -1, 0.5, 0.25, -0.75, 0.1}, B: []float64{-0.1, 0.1}},
		},
	}
	require.NoError(t, p.Validate())

	xs := [][]float64{
		{1, 2},
		{-3, 0.5},
		{0, 0},
		{10, -10},
	}
	batch, err := p.PredictBatch(xs)
	require.NoError(t, err)
	require.Len(t, batch, len(xs))

	for i, x := range xs {
		single, err := p.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, single.Class, batch[i].Class)
		for j := range single.Scores {
			assert.InDelta(t, single.Scores[j], batch[i].Scores[j], 1e-12)
		}
	}
}

func TestPredictBatch_Empty(t *testing.T) {
	p := twoClassParams()
	preds, err := p.PredictBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestParamsValidate(t *testing.T) {
	p := twoClassParams()

	p.Layers[0].In = 3
	assert.Error(t, p.Validate())

	p = twoClassParams()
	p.Layers[0].B = []float64{0}
	assert.Error(t, p.Validate())

	p = twoClassParams()
	p.Activation = "relu6"
	assert.Error(t, p.Validate())

	p = twoClassParams()
	p.Normalizer = nil
	assert.Error(t, p.Validate())

	p = twoClassParams()
	p.Layers = nil
	assert.Error(t, p.Validate())
}

func TestSoftmax_SumsToOne(t *testing.T) {
	for _, logits := range [][]float64{
		{0, 0, 0},
		{1000, 1000, 1000},
		{-1000, 0, 1000},
		{3.5, -2.25, 0.125},
	} {
		s := softmax(logits)
		var sum float64
		for _, v := range s {
			require.False(t, math.IsNaN(v))
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-9)
	}
}
