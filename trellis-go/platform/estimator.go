package platform

import (
	"context"
	"log"
	"time"

	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-go/serve"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
)

// How often Fit polls a daemon-side training job.
const jobPollInterval = 500 * time.Millisecond

// Estimator bundles a model name, its training configuration, and the
// session it trains and deploys through.
type Estimator struct {
	Name          string
	Config        dnn.Config
	InstanceType  string
	InstanceCount int
	TrainSteps    int

	sess *Session
	log  *log.Logger
}

// Option tweaks an estimator at construction.
type Option func(*Estimator)

// WithInstanceType names the instance type training asks for.
func WithInstanceType(t string) Option {
	return func(e *Estimator) { e.InstanceType = t }
}

// WithInstanceCount sets the training instance count.
func WithInstanceCount(n int) Option {
	return func(e *Estimator) { e.InstanceCount = n }
}

// WithTrainSteps overrides the config's step budget.
func WithTrainSteps(steps int) Option {
	return func(e *Estimator) { e.TrainSteps = steps }
}

// NewEstimator builds an estimator for the named model.
func NewEstimator(sess *Session, name string, cfg dnn.Config, opts ...Option) *Estimator {
	e := &Estimator{
		Name:          name,
		Config:        cfg,
		InstanceCount: 1,
		sess:          sess,
		log:           logf.Named("estimator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.TrainSteps > 0 {
		e.Config.TrainSteps = e.TrainSteps
	}
	return e
}

// Fit trains the model on the dataset at dataURI and stores the resulting
// artifact in the session's store. Local sessions train in-process; daemon
// sessions submit a training job and poll it to completion.
func (e *Estimator) Fit(ctx context.Context, dataURI string) (*artifact.Artifact, error) {
	if dataURI == "" {
		return nil, errors.Wrapf(ErrBadRequest, "data uri is empty")
	}
	if err := e.sess.Validate(); err != nil {
		return nil, err
	}

	if e.sess.Local() {
		return e.fitLocal(ctx, dataURI)
	}
	return e.fitRemote(ctx, dataURI)
}

func (e *Estimator) fitLocal(ctx context.Context, dataURI string) (*artifact.Artifact, error) {
	set, err := dataset.Open(dataURI)
	if err != nil {
		return nil, err
	}

	cfg := e.Config
	if cfg.Schema.NumFeatures() == 0 {
		cfg.Schema = set.Schema
	}

	start := time.Now()
	params, report, err := dnn.Train(ctx, cfg, set)
	if err != nil {
		return nil, err
	}
	e.log.Printf("trained %s: %d epochs in %s, train accuracy %.3f",
		e.Name, report.Epochs, time.Since(start).Round(time.Millisecond), report.TrainAccuracy)

	metrics, err := dnn.Evaluate(params, set)
	if err != nil {
		return nil, err
	}

	art, _, err := e.sess.Store().Put(e.Name, params, artifact.Meta{
		TrainDataURI: dataURI,
		TrainSteps:   cfg.TrainSteps,
		Metrics:      metrics,
	})
	return art, err
}

func (e *Estimator) fitRemote(ctx context.Context, dataURI string) (*artifact.Artifact, error) {
	cfg := e.Config

	var job serve.Job
	err := e.sess.call(ctx, "POST", "/v1/models", trainRequest{
		Name:    e.Name,
		DataURI: dataURI,
		Steps:   cfg.TrainSteps,
		Config:  &cfg,
	}, &job)
	if err != nil {
		return nil, err
	}
	e.log.Printf("submitted training job %s for %s", job.ID, e.Name)

	for {
		switch job.State {
		case serve.JobCompleted:
			return artifact.Load(job.ArtifactURI)
		case serve.JobFailed:
			return nil, errors.Errorf("training job %s failed: %s", job.ID, job.Error)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting on training job %s", job.ID)
		case <-time.After(jobPollInterval):
		}

		if job, err = e.sess.GetJob(ctx, job.ID); err != nil {
			return nil, err
		}
	}
}

// Evaluate scores a trained artifact against the dataset at dataURI.
func (e *Estimator) Evaluate(ctx context.Context, art *artifact.Artifact, dataURI string) (dnn.Metrics, error) {
	set, err := dataset.Open(dataURI)
	if err != nil {
		return dnn.Metrics{}, err
	}
	return dnn.Evaluate(&art.Params, set)
}

// DeployConfig shapes the endpoint an artifact is deployed onto.
type DeployConfig struct {
	InstanceCount int
	InstanceType  string
	Accelerator   string
}

// Deploy puts the artifact behind an endpoint named after the estimator
// and returns a predictor bound to it.
func (e *Estimator) Deploy(ctx context.Context, art *artifact.Artifact, cfg DeployConfig) (*Predictor, error) {
	if art == nil {
		return nil, errors.Wrapf(ErrBadRequest, "no artifact to deploy")
	}
	if cfg.InstanceCount < 1 {
		cfg.InstanceCount = 1
	}

	uri := e.sess.Store().ModelURI(art.Meta.Name, art.Meta.ID)

	if e.sess.Local() {
		srv, err := e.sess.server()
		if err != nil {
			return nil, err
		}
		_, err = srv.Registry.Deploy(e.Name, serve.DeployConfig{
			ArtifactURI:   uri,
			InstanceCount: cfg.InstanceCount,
			InstanceType:  cfg.InstanceType,
			Accelerator:   cfg.Accelerator,
		})
		if err != nil {
			return nil, err
		}
		return &Predictor{EndpointName: e.Name, sess: e.sess}, nil
	}

	var info serve.EndpointInfo
	err := e.sess.call(ctx, "POST", "/v1/endpoints", deployRequest{
		Name:          e.Name,
		Artifact:      uri,
		InstanceCount: cfg.InstanceCount,
		InstanceType:  cfg.InstanceType,
		Accelerator:   cfg.Accelerator,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &Predictor{EndpointName: info.Name, sess: e.sess}, nil
}
