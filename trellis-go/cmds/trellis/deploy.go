package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/trellis-ml/trellis/trellis-go/accel"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-go/platform"
	"github.com/trellis-ml/trellis/trellis-golib/cmdline"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

var deployCmd = cmdline.Command{
	Name:     "deploy",
	Synopsis: "deploy a trained model behind an endpoint",
	Args: &deployArgs{
		Instances: 1,
	},
}

type deployArgs struct {
	Endpoint    string `arg:"positional,required" help:"endpoint name"`
	Model       string `arg:"positional,required" help:"model name or artifact uri"`
	Instances   int    `arg:"--instances" help:"instance count"`
	Type        string `arg:"--type" help:"instance type"`
	Accelerator string `arg:"--accelerator" help:"accelerator profile"`
}

func (args *deployArgs) Validate() error {
	if args.Accelerator == "" {
		return nil
	}
	if _, err := accel.Lookup(args.Accelerator); err != nil {
		return errors.Errorf("accelerator must be one of %s", strings.Join(accel.Names(), ", "))
	}
	return nil
}

func (args *deployArgs) Handle() error {
	sess := platform.NewSession()
	defer sess.Close()

	art, err := loadArtifact(sess, args.Model)
	if err != nil {
		return err
	}

	est := platform.NewEstimator(sess, args.Endpoint, dnn.Config{})
	pred, err := est.Deploy(context.Background(), art, platform.DeployConfig{
		InstanceCount: args.Instances,
		InstanceType:  args.Type,
		Accelerator:   args.Accelerator,
	})
	if err != nil {
		return err
	}

	info, err := pred.Describe(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("endpoint %s is %s, serving %s/%s\n", info.Name, info.State, art.Meta.Name, info.ArtifactID)
	return nil
}
