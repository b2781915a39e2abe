package dnn

import (
	"math"

	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"gonum.org/v1/gonum/mat"
)

// Layer is one trained dense layer: a row-major In x Out weight matrix and
// an Out-length bias vector.
type Layer struct {
	W   []float64 `json:"w"`
	B   []float64 `json:"b"`
	In  int       `json:"in"`
	Out int       `json:"out"`
}

// Params is the trained network in framework-free form: everything the
// serving side needs to reproduce training-time predictions. This is the
// model artifact payload.
type Params struct {
	Schema     dataset.Schema      `json:"schema"`
	Normalizer *dataset.Normalizer `json:"normalizer"`
	Layers     []Layer             `json:"layers"`
	Activation string              `json:"activation"`
}

// Validate checks that the layer dimensions chain from the schema's feature
// count to its class count.
func (p *Params) Validate() error {
	if err := p.Schema.Validate(); err != nil {
		return err
	}
	if p.Normalizer == nil || len(p.Normalizer.Offset) != p.Schema.NumFeatures() {
		return errors.New("params missing a normalizer fitted to the schema")
	}
	if _, err := activationFor(p.Activation); err != nil {
		return err
	}
	if len(p.Layers) == 0 {
		return errors.New("params have no layers")
	}

	in := p.Schema.NumFeatures()
	for i, l := range p.Layers {
		if l.In != in {
			return errors.Errorf("layer %d input %d, expected %d", i, l.In, in)
		}
		if len(l.W) != l.In*l.Out {
			return errors.Errorf("layer %d has %d weights for %dx%d", i, len(l.W), l.In, l.Out)
		}
		if len(l.B) != l.Out {
			return errors.Errorf("layer %d has %d biases for %d units", i, len(l.B), l.Out)
		}
		in = l.Out
	}
	if in != p.Schema.NumClasses() {
		return errors.Errorf("final layer output %d, schema has %d classes", in, p.Schema.NumClasses())
	}
	return nil
}

// ServingInput returns the request shape this network accepts.
func (p *Params) ServingInput() dataset.ServingInput {
	return dataset.ServingInput{Features: p.Schema.NumFeatures()}
}

// Forward runs one instance through the network and returns the softmax
// scores, one per class.
func (p *Params) Forward(x []float64) ([]float64, error) {
	out, err := p.forwardBatch([][]float64{x})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Predict classifies one instance.
func (p *Params) Predict(x []float64) (Prediction, error) {
	scores, err := p.Forward(x)
	if err != nil {
		return Prediction{}, err
	}
	return p.prediction(scores), nil
}

// PredictBatch classifies instances a matrix at a time. Output order
// matches input order.
func (p *Params) PredictBatch(xs [][]float64) ([]Prediction, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	scores, err := p.forwardBatch(xs)
	if err != nil {
		return nil, err
	}
	preds := make([]Prediction, len(scores))
	for i, s := range scores {
		preds[i] = p.prediction(s)
	}
	return preds, nil
}

func (p *Params) prediction(scores []float64) Prediction {
	class := 0
	for i, s := range scores {
		if s > scores[class] {
			class = i
		}
	}
	return Prediction{Class: class, Label: p.Schema.Classes[class], Scores: scores}
}

func (p *Params) forwardBatch(xs [][]float64) ([][]float64, error) {
	act, err := activationFor(p.Activation)
	if err != nil {
		return nil, err
	}

	n := len(xs)
	in := p.Schema.NumFeatures()
	flat := make([]float64, 0, n*in)
	for i, x := range xs {
		nx, err := p.Normalizer.Apply(x)
		if err != nil {
			return nil, errors.Wrapf(err, "instance %d", i)
		}
		flat = append(flat, nx...)
	}

	h := mat.NewDense(n, in, flat)
	for li, layer := range p.Layers {
		w := mat.NewDense(layer.In, layer.Out, layer.W)
		z := mat.NewDense(n, layer.Out, nil)
		z.Mul(h, w)

		hidden := li < len(p.Layers)-1
		for r := 0; r < n; r++ {
			for c := 0; c < layer.Out; c++ {
				v := z.At(r, c) + layer.B[c]
				if hidden {
					v = act.fn(v)
				}
				z.Set(r, c, v)
			}
		}
		h = z
	}

	out := make([][]float64, n)
	for r := 0; r < n; r++ {
		out[r] = softmax(h.RawRowView(r))
	}
	return out, nil
}

// softmax returns the normalized exponentials of the logits, shifted by the
// max for numeric stability.
func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
