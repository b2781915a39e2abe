package main

import (
	"context"
	"fmt"

	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-go/platform"
	"github.com/trellis-ml/trellis/trellis-golib/cmdline"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

var predictCmd = cmdline.Command{
	Name:     "predict",
	Synopsis: "classify feature vectors through a deployed endpoint",
	Args:     &predictArgs{},
}

type predictArgs struct {
	Endpoint string    `arg:"positional,required" help:"endpoint name"`
	Features []float64 `arg:"positional" help:"one feature vector"`
	Data     string    `arg:"--data" help:"csv uri to classify instead of a vector"`
}

func (args *predictArgs) Validate() error {
	if len(args.Features) == 0 && args.Data == "" {
		return errors.New("provide a feature vector or --data")
	}
	if len(args.Features) > 0 && args.Data != "" {
		return errors.New("provide a feature vector or --data, not both")
	}
	return nil
}

func (args *predictArgs) Handle() error {
	sess := platform.NewSession()
	defer sess.Close()

	ctx := context.Background()
	pred := platform.NewPredictor(sess, args.Endpoint)

	if args.Data == "" {
		p, err := pred.Predict(ctx, args.Features)
		if err != nil {
			return err
		}
		fmt.Printf("class %d (%s), score %.4f\n", p.Class, p.Label, p.Scores[p.Class])
		return nil
	}

	set, err := dataset.Open(args.Data)
	if err != nil {
		return err
	}
	preds, err := pred.PredictBatch(ctx, set.Features())
	if err != nil {
		return err
	}

	var correct int
	for i, p := range preds {
		fmt.Printf("%4d  class %d (%s)  %.4f\n", i+1, p.Class, p.Label, p.Scores[p.Class])
		if p.Class == set.Examples[i].Label {
			correct++
		}
	}
	fmt.Printf("%d/%d match the dataset labels\n", correct, len(preds))
	return nil
}
