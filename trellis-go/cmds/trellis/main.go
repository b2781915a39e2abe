package main

import (
	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-go/platform"
	"github.com/trellis-ml/trellis/trellis-golib/cmdline"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
)

func init() {
	logf.SetDefault()
}

// loadArtifact accepts either a model name (resolved to its newest version
// in the session store) or a model uri.
func loadArtifact(sess *platform.Session, nameOrURI string) (*artifact.Artifact, error) {
	uri, err := sess.Store().Resolve(nameOrURI)
	if err != nil {
		return nil, err
	}
	return artifact.Load(uri)
}

func main() {
	cmdline.MustDispatch(
		trainCmd,
		evaluateCmd,
		deployCmd,
		predictCmd,
		endpointsCmd,
		transformCmd,
		jobsCmd,
	)
}
