package dnn

import (
	"math"

	"github.com/trellis-ml/trellis/trellis-golib/errors"
	tim "github.com/tuneinsight/timatrices"
)

// Activations are defined twice over: a scalar function pair used by the
// serving forward pass, and a tilearn layer activation used during training.
// Both sides must agree exactly or served scores drift from trained ones.

func sigmoid(x float64) float64 {
	return 1 / (math.Exp(-x) + 1)
}

// softplus is log(1+exp(x)) with the tails clamped to keep exp from
// overflowing. The derivative is the sigmoid.
func softplus(x float64) float64 {
	if x > -20 && x < 20 {
		return math.Log(1 + math.Exp(x))
	}
	if x > 0 {
		return x
	}
	return 0
}

func silu(x float64) float64 {
	return x * sigmoid(x)
}

func siluGrad(x float64) float64 {
	s := sigmoid(x)
	return s * (1 + x*(1-s))
}

type scalarActivation struct {
	fn   func(float64) float64
	grad func(float64) float64
}

// Forward and Backward satisfy tilearn's layer activation interface.

func (a scalarActivation) Forward(threads int, outRaw, outActiv *tim.FloatMatrix) {
	outActiv.Func(threads, outRaw, a.fn)
}

func (a scalarActivation) Backward(threads int, outRaw, errWeights *tim.FloatMatrix) {
	errWeights.FuncAndDot(threads, outRaw, a.grad)
}

var activations = map[string]scalarActivation{
	"softplus": {fn: softplus, grad: sigmoid},
	"silu":     {fn: silu, grad: siluGrad},
}

func activationFor(name string) (scalarActivation, error) {
	a, ok := activations[name]
	if !ok {
		return scalarActivation{}, errors.Errorf("unknown activation %q", name)
	}
	return a, nil
}
