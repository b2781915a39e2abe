package dnn

import (
	"context"
	"runtime"

	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	til "github.com/tuneinsight/tilearn"
	tim "github.com/tuneinsight/timatrices"
)

// Epochs per call into the trainer, so cancellation is checked on a bounded
// interval.
const epochsPerRound = 50

// Report summarizes a training run.
type Report struct {
	Epochs        int     `json:"epochs"`
	TrainAccuracy float64 `json:"train_accuracy"`
}

// Train fits a classifier on the set and exports the learned network. The
// context is checked between training rounds, so cancellation can lose at
// most epochsPerRound epochs of work.
func Train(ctx context.Context, cfg Config, set *dataset.Set) (*Params, Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Report{}, err
	}
	if err := set.Validate(); err != nil {
		return nil, Report{}, err
	}
	if set.Len() == 0 {
		return nil, Report{}, errors.New("training set is empty")
	}
	var populated int
	for _, c := range set.ClassCounts() {
		if c > 0 {
			populated++
		}
	}
	if populated < 2 {
		return nil, Report{}, errors.Errorf("training set covers %d classes, need at least 2", populated)
	}

	norm := dataset.NewNormalizer(set)
	scaled, err := norm.Transform(set)
	if err != nil {
		return nil, Report{}, err
	}

	x := scaled.Features()
	labels := make([][]float64, set.Len())
	for i, y := range set.Labels() {
		labels[i] = []float64{float64(y)}
	}
	oneHot := til.OneHotEncode(labels, cfg.Schema.NumClasses())
	train := til.NewDataSet(x, oneHot)

	act, err := activationFor(cfg.Activation)
	if err != nil {
		return nil, Report{}, err
	}

	model := til.NewModel(runtime.NumCPU(), til.NewADAM(cfg.LearningRate, 0.9, 0.999, 1e-8), &til.CategoricalCrossEntropy{})
	model.SetVerbose(0)

	init := til.NewNormalInitializer(int(cfg.Seed))
	// a zero penalty makes the regularizer a no-op
	reg := &til.L1L2Regularizer{Value: cfg.L2Penalty, L1Ratio: 0}

	dims := append([]int{cfg.Schema.NumFeatures()}, cfg.HiddenUnits...)
	for i := 1; i < len(dims); i++ {
		model.Add(til.NewDense(dims[i-1], dims[i], &act, init, reg))
	}
	model.Add(til.NewDense(dims[len(dims)-1], cfg.Schema.NumClasses(), &til.Identity{}, init, reg))

	epochs := epochsFor(cfg.TrainSteps, set.Len(), cfg.BatchSize)
	var trained int
	for trained < epochs {
		if err := ctx.Err(); err != nil {
			return nil, Report{}, errors.Wrapf(err, "training canceled after %d epochs", trained)
		}
		round := epochsPerRound
		if remaining := epochs - trained; remaining < round {
			round = remaining
		}
		model.Train(train, cfg.BatchSize, round, 0)
		trained += round
	}

	params := &Params{
		Schema:     cfg.Schema,
		Normalizer: norm,
		Activation: cfg.Activation,
	}
	expectIn := cfg.Schema.NumFeatures()
	for i, layer := range model.Layers {
		exported, err := exportDense(layer.Weights(), layer.Bias(), expectIn)
		if err != nil {
			return nil, Report{}, errors.Wrapf(err, "exporting layer %d", i)
		}
		params.Layers = append(params.Layers, exported)
		expectIn = exported.Out
	}
	if err := params.Validate(); err != nil {
		return nil, Report{}, errors.Wrapf(err, "exported network is inconsistent")
	}

	metrics, err := Evaluate(params, set)
	if err != nil {
		return nil, Report{}, err
	}
	return params, Report{Epochs: trained, TrainAccuracy: metrics.Accuracy}, nil
}

// epochsFor converts a step budget (one step = one mini-batch) into whole
// epochs against the set size.
func epochsFor(steps, setLen, batchSize int) int {
	batchesPerEpoch := (setLen + batchSize - 1) / batchSize
	epochs := (steps + batchesPerEpoch - 1) / batchesPerEpoch
	if epochs < 1 {
		epochs = 1
	}
	return epochs
}

// exportDense copies a trained layer's weights into row-major in x out
// form. The trainer's matrix orientation is treated as unspecified: the
// dimensions decide whether a transpose is needed.
func exportDense(w, b *tim.FloatMatrix, expectIn int) (Layer, error) {
	rows, cols := w.Rows(), w.Cols()

	var out Layer
	switch {
	case rows == expectIn:
		out = Layer{In: rows, Out: cols, W: append([]float64{}, w.M...)}
	case cols == expectIn:
		out = Layer{In: cols, Out: rows, W: make([]float64, rows*cols)}
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				out.W[c*rows+r] = w.M[r*cols+c]
			}
		}
	default:
		return Layer{}, errors.Errorf("weight matrix is %dx%d, expected %d inputs", rows, cols, expectIn)
	}

	out.B = append([]float64{}, b.M...)
	if len(out.B) != out.Out {
		return Layer{}, errors.Errorf("bias has %d values for %d units", len(out.B), out.Out)
	}
	return out, nil
}
