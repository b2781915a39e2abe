package main

import (
	"context"
	"fmt"

	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-go/platform"
	"github.com/trellis-ml/trellis/trellis-golib/cmdline"
)

var trainCmd = cmdline.Command{
	Name:     "train",
	Synopsis: "train a classifier on a csv dataset",
	Args: &trainArgs{
		Steps: dnn.DefaultTrainSteps,
		Batch: dnn.DefaultBatchSize,
	},
}

type trainArgs struct {
	Name         string  `arg:"positional,required" help:"model name"`
	Data         string  `arg:"positional,required" help:"training csv uri"`
	Steps        int     `arg:"--steps" help:"training steps"`
	Batch        int     `arg:"--batch" help:"batch size"`
	Hidden       []int   `arg:"--hidden" help:"hidden layer sizes"`
	Activation   string  `arg:"--activation" help:"hidden layer activation"`
	LearningRate float64 `arg:"--learning-rate" help:"adam learning rate"`
	Seed         int64   `arg:"--seed" help:"weight init seed"`
}

func (args *trainArgs) Handle() error {
	sess := platform.NewSession()
	defer sess.Close()

	cfg := dnn.Config{
		HiddenUnits:  args.Hidden,
		Activation:   args.Activation,
		LearningRate: args.LearningRate,
		BatchSize:    args.Batch,
		TrainSteps:   args.Steps,
		Seed:         args.Seed,
	}

	est := platform.NewEstimator(sess, args.Name, cfg)
	art, err := est.Fit(context.Background(), args.Data)
	if err != nil {
		return err
	}

	fmt.Printf("trained %s/%s\n", art.Meta.Name, art.Meta.ID)
	fmt.Printf("  accuracy  %.4f (train)\n", art.Meta.Metrics.Accuracy)
	fmt.Printf("  artifact  %s\n", sess.Store().ModelURI(art.Meta.Name, art.Meta.ID))
	return nil
}
