package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/trellis-ml/trellis/trellis-go/platform"
	"github.com/trellis-ml/trellis/trellis-golib/cmdline"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

var endpointsCmd = cmdline.Command{
	Name:     "endpoints",
	Synopsis: "list, describe, or delete endpoints",
	Args:     &endpointsArgs{},
}

type endpointsArgs struct {
	Name   string `arg:"positional" help:"endpoint to describe"`
	Delete bool   `arg:"--delete" help:"delete the named endpoint"`
}

func (args *endpointsArgs) Validate() error {
	if args.Delete && args.Name == "" {
		return errors.New("--delete needs an endpoint name")
	}
	return nil
}

func (args *endpointsArgs) Handle() error {
	sess := platform.NewSession()
	defer sess.Close()

	ctx := context.Background()

	if args.Delete {
		if err := platform.NewPredictor(sess, args.Name).Delete(ctx); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args.Name)
		return nil
	}

	if args.Name != "" {
		info, err := sess.DescribeEndpoint(ctx, args.Name)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	endpoints, err := sess.ListEndpoints(ctx)
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		fmt.Println("no endpoints")
		return nil
	}
	for _, ep := range endpoints {
		fmt.Printf("%-24s %-10s %s  instances=%d accelerator=%s\n",
			ep.Name, ep.State, ep.ArtifactID, ep.Config.InstanceCount, orNone(ep.Config.Accelerator))
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
