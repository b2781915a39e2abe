package main

import (
	"context"
	"fmt"

	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-go/platform"
	"github.com/trellis-ml/trellis/trellis-golib/cmdline"
)

var evaluateCmd = cmdline.Command{
	Name:     "evaluate",
	Synopsis: "score a trained model against a labeled csv dataset",
	Args:     &evaluateArgs{},
}

type evaluateArgs struct {
	Model string `arg:"positional,required" help:"model name or artifact uri"`
	Data  string `arg:"positional,required" help:"evaluation csv uri"`
}

func (args *evaluateArgs) Handle() error {
	sess := platform.NewSession()
	defer sess.Close()

	art, err := loadArtifact(sess, args.Model)
	if err != nil {
		return err
	}

	est := platform.NewEstimator(sess, art.Meta.Name, dnn.Config{})
	metrics, err := est.Evaluate(context.Background(), art, args.Data)
	if err != nil {
		return err
	}

	fmt.Printf("%s/%s on %s\n", art.Meta.Name, art.Meta.ID, args.Data)
	fmt.Printf("  accuracy %.4f over %d examples\n", metrics.Accuracy, metrics.N)
	fmt.Println("  confusion (rows = actual, cols = predicted):")
	for i, row := range metrics.Confusion {
		fmt.Printf("    %-12s %v\n", art.Params.Schema.Classes[i], row)
	}
	return nil
}
