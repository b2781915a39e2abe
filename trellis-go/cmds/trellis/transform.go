package main

import (
	"fmt"

	"github.com/trellis-ml/trellis/trellis-go/platform"
	"github.com/trellis-ml/trellis/trellis-go/transform"
	"github.com/trellis-ml/trellis/trellis-golib/cmdline"
)

var transformCmd = cmdline.Command{
	Name:     "transform",
	Synopsis: "batch-classify a feature csv into a prediction csv",
	Args:     &transformArgs{},
}

type transformArgs struct {
	Model       string `arg:"positional,required" help:"model name or artifact uri"`
	Input       string `arg:"positional,required" help:"feature csv uri"`
	Output      string `arg:"positional,required" help:"prediction csv uri"`
	Accelerator string `arg:"--accelerator" help:"accelerator profile"`
}

func (args *transformArgs) Handle() error {
	sess := platform.NewSession()
	defer sess.Close()

	art, err := loadArtifact(sess, args.Model)
	if err != nil {
		return err
	}

	results, err := transform.Run(art, transform.Options{
		Input:       args.Input,
		Output:      args.Output,
		Accelerator: args.Accelerator,
	})
	if err != nil {
		return err
	}

	fmt.Printf("wrote %d predictions to %s\n", len(results), args.Output)
	return nil
}
