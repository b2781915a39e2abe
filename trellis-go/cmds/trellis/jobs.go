package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/trellis-ml/trellis/trellis-go/platform"
	"github.com/trellis-ml/trellis/trellis-golib/cmdline"
)

var jobsCmd = cmdline.Command{
	Name:     "jobs",
	Synopsis: "list or inspect training jobs on the serving daemon",
	Args:     &jobsArgs{},
}

type jobsArgs struct {
	ID string `arg:"positional" help:"job id to inspect"`
}

func (args *jobsArgs) Handle() error {
	sess := platform.NewSession()
	defer sess.Close()

	ctx := context.Background()

	if args.ID != "" {
		job, err := sess.GetJob(ctx, args.ID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	jobs, err := sess.ListJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs")
		return nil
	}
	for _, job := range jobs {
		fmt.Printf("%-14s %-11s %-20s %s\n", job.ID, job.State, job.ModelName, job.DataURI)
	}
	return nil
}
