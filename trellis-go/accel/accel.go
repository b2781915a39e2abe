// Package accel implements inference accelerator profiles: named serving
// configurations that trade memory and parallelism for lower latency on
// batched invocations, without touching the trained model.
package accel

import (
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/workerpool"
)

// ErrUnknownProfile is returned by Lookup for names not in the catalog.
var ErrUnknownProfile = errors.New("unknown accelerator profile")

// Profile sizes the batched execution path: requests are chopped into
// MaxBatch chunks fanned across Workers.
type Profile struct {
	Name     string `json:"name"`
	MaxBatch int    `json:"max_batch"`
	Workers  int    `json:"workers"`
}

// None is the absent profile: predictions take the plain path.
var None = Profile{}

var catalog = map[string]Profile{
	"accel.micro":  {Name: "accel.micro", MaxBatch: 1, Workers: 1},
	"accel.medium": {Name: "accel.medium", MaxBatch: 16, Workers: 2},
	"accel.large":  {Name: "accel.large", MaxBatch: 32, Workers: 4},
	"accel.xlarge": {Name: "accel.xlarge", MaxBatch: 64, Workers: 8},
}

// Lookup resolves a profile by name. The empty name resolves to None.
func Lookup(name string) (Profile, error) {
	if name == "" {
		return None, nil
	}
	p, ok := catalog[name]
	if !ok {
		return Profile{}, errors.Wrapf(ErrUnknownProfile, "%q", name)
	}
	return p, nil
}

// Names lists the catalog, for validation messages and the CLI.
func Names() []string {
	return []string{"accel.micro", "accel.medium", "accel.large", "accel.xlarge"}
}

// Enabled reports whether the profile changes the execution path.
func (p Profile) Enabled() bool { return p.Name != "" }

// Engine runs batch predictions under a profile. Results always come back
// in input order regardless of worker interleaving.
type Engine struct {
	profile   Profile
	predictor dnn.BatchPredictor
}

// NewEngine wraps a predictor with the profile's batching policy.
func NewEngine(p Profile, predictor dnn.BatchPredictor) *Engine {
	return &Engine{profile: p, predictor: predictor}
}

// Profile returns the engine's profile.
func (e *Engine) Profile() Profile { return e.profile }

// Predict classifies the instances. Without an enabled profile, or when the
// request fits one chunk, it is a single pass through the predictor.
func (e *Engine) Predict(xs [][]float64) ([]dnn.Prediction, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	if !e.profile.Enabled() || len(xs) <= e.profile.MaxBatch {
		return e.predictor.PredictBatch(xs)
	}

	chunks := chunk(xs, e.profile.MaxBatch)
	results := make([][]dnn.Prediction, len(chunks))

	jobs := make([]workerpool.Job, len(chunks))
	for i := range chunks {
		i := i
		jobs[i] = func() error {
			preds, err := e.predictor.PredictBatch(chunks[i])
			if err != nil {
				return err
			}
			results[i] = preds
			return nil
		}
	}

	pool := workerpool.New(e.profile.Workers)
	defer pool.Stop()
	pool.Add(jobs)
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	out := make([]dnn.Prediction, 0, len(xs))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func chunk(xs [][]float64, size int) [][][]float64 {
	var chunks [][][]float64
	for start := 0; start < len(xs); start += size {
		end := start + size
		if end > len(xs) {
			end = len(xs)
		}
		chunks = append(chunks, xs[start:end])
	}
	return chunks
}
