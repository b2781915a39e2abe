// Package dnn trains and serves feed-forward classifiers. Training runs on
// tilearn; the trained network is exported into Params, a framework-free
// weight bundle served by a gonum forward pass.
package dnn

import (
	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// Default hyperparameters. Hidden layer sizes follow the classic three-layer
// iris topology.
var (
	DefaultHiddenUnits = []int{10, 20, 10}
)

const (
	DefaultActivation   = "softplus"
	DefaultLearningRate = 0.001
	DefaultBatchSize    = 32
	DefaultTrainSteps   = 2000
	DefaultSeed         = 42
)

// Config describes a classifier to train.
type Config struct {
	Schema       dataset.Schema `json:"schema"`
	HiddenUnits  []int          `json:"hidden_units"`
	Activation   string         `json:"activation"`
	LearningRate float64        `json:"learning_rate"`
	BatchSize    int            `json:"batch_size"`
	TrainSteps   int            `json:"train_steps"`
	Seed         int64          `json:"seed"`
	L2Penalty    float64        `json:"l2_penalty"`
}

// NewConfig returns a Config for the schema with every hyperparameter at
// its default.
func NewConfig(schema dataset.Schema) Config {
	return Config{
		Schema:       schema,
		HiddenUnits:  append([]int{}, DefaultHiddenUnits...),
		Activation:   DefaultActivation,
		LearningRate: DefaultLearningRate,
		BatchSize:    DefaultBatchSize,
		TrainSteps:   DefaultTrainSteps,
		Seed:         DefaultSeed,
	}
}

// Validate checks the config and fills zero-valued fields with defaults.
func (c *Config) Validate() error {
	if err := c.Schema.Validate(); err != nil {
		return err
	}
	if len(c.HiddenUnits) == 0 {
		c.HiddenUnits = append([]int{}, DefaultHiddenUnits...)
	}
	for _, h := range c.HiddenUnits {
		if h < 1 {
			return errors.Errorf("hidden layer size %d is not positive", h)
		}
	}
	if c.Activation == "" {
		c.Activation = DefaultActivation
	}
	if _, err := activationFor(c.Activation); err != nil {
		return err
	}
	if c.LearningRate == 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.LearningRate < 0 {
		return errors.Errorf("learning rate %v is negative", c.LearningRate)
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize < 1 {
		return errors.Errorf("batch size %d is not positive", c.BatchSize)
	}
	if c.TrainSteps == 0 {
		c.TrainSteps = DefaultTrainSteps
	}
	if c.TrainSteps < 1 {
		return errors.Errorf("train steps %d is not positive", c.TrainSteps)
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.L2Penalty < 0 {
		return errors.Errorf("l2 penalty %v is negative", c.L2Penalty)
	}
	return nil
}

// Prediction is the classifier output for one instance.
type Prediction struct {
	Class  int       `json:"class"`
	Label  string    `json:"label"`
	Scores []float64 `json:"scores"`
}

// BatchPredictor predicts a batch of instances at a time. Params implements
// it; the accel engine consumes it.
type BatchPredictor interface {
	PredictBatch(xs [][]float64) ([]Prediction, error)
}
