package accel

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// echoPredictor tags each instance with its first feature, after a random
// pause so worker interleaving gets a chance to scramble results.
type echoPredictor struct {
	jitter bool
	fail   float64
}

func (p echoPredictor) PredictBatch(xs [][]float64) ([]dnn.Prediction, error) {
	if p.jitter {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	}
	out := make([]dnn.Prediction, len(xs))
	for i, x := range xs {
		if x[0] == p.fail && p.fail != 0 {
			return nil, errors.Errorf("no prediction for %v", x)
		}
		out[i] = dnn.Prediction{Class: int(x[0]), Scores: []float64{x[0]}}
	}
	return out, nil
}

func instances(n int) [][]float64 {
	xs := make([][]float64, n)
	for i := range xs {
		xs[i] = []float64{float64(i + 1)}
	}
	return xs
}

func TestLookup(t *testing.T) {
	p, err := Lookup("accel.large")
	require.NoError(t, err)
	assert.Equal(t, 32, p.MaxBatch)
	assert.Equal(t, 4, p.Workers)
	assert.True(t, p.Enabled())

	none, err := Lookup("")
	require.NoError(t, err)
	assert.False(t, none.Enabled())

	_, err = Lookup("accel.huge")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProfile))
}

func TestEngine_PreservesOrder(t *testing.T) {
	for _, name := range Names() {
		p, err := Lookup(name)
		require.NoError(t, err)

		engine := NewEngine(p, echoPredictor{jitter: true})
		preds, err := engine.Predict(instances(100))
		require.NoError(t, err)
		require.Len(t, preds, 100)
		for i, pred := range preds {
			assert.Equal(t, i+1, pred.Class, "profile %s result %d", name, i)
		}
	}
}

func TestEngine_MatchesPlainPath(t *testing.T) {
	xs := instances(57)

	plain, err := NewEngine(None, echoPredictor{}).Predict(xs)
	require.NoError(t, err)

	accelerated, err := NewEngine(catalog["accel.xlarge"], echoPredictor{}).Predict(xs)
	require.NoError(t, err)

	assert.Equal(t, plain, accelerated)
}

func TestEngine_PropagatesErrors(t *testing.T) {
	p, err := Lookup("accel.medium")
	require.NoError(t, err)

	engine := NewEngine(p, echoPredictor{fail: 40})
	_, err = engine.Predict(instances(100))
	require.Error(t, err)
}

func TestEngine_Empty(t *testing.T) {
	engine := NewEngine(None, echoPredictor{})
	preds, err := engine.Predict(nil)
	require.NoError(t, err)
	assert.Empty(t, preds)
}
