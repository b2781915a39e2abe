package serve

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sort"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
	"github.com/trellis-ml/trellis/trellis-golib/status"
	"github.com/trellis-ml/trellis/trellis-golib/workerpool"
)

var (
	jobsSection  = status.NewSection("training_jobs")
	jobsStarted  = jobsSection.Counter("started")
	jobsFailed   = jobsSection.Counter("failed")
	jobDurations = jobsSection.SampleDuration("train")
)

// JobState tracks a training job through its lifecycle.
type JobState string

const (
	JobPending    JobState = "Pending"
	JobInProgress JobState = "InProgress"
	JobCompleted  JobState = "Completed"
	JobFailed     JobState = "Failed"
)

// Job is one server-side training run.
type Job struct {
	ID          string     `json:"id"`
	ModelName   string     `json:"model_name"`
	DataURI     string     `json:"data_uri"`
	Config      dnn.Config `json:"config"`
	State       JobState   `json:"state"`
	Error       string     `json:"error,omitempty"`
	ArtifactID  string     `json:"artifact_id,omitempty"`
	ArtifactURI string     `json:"artifact_uri,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Jobs runs training jobs on a bounded worker pool and tracks their states
// for the jobs API.
type Jobs struct {
	mu   sync.Mutex
	jobs map[string]*Job

	ctx   context.Context
	store *artifact.Store
	pool  *workerpool.Pool
	log   *log.Logger
}

// NewJobs returns a job manager training into the given store. At most
// workers jobs train concurrently; the context aborts in-flight training on
// shutdown.
func NewJobs(ctx context.Context, store *artifact.Store, workers int) *Jobs {
	if workers < 1 {
		workers = 1
	}
	return &Jobs{
		jobs:  make(map[string]*Job),
		ctx:   ctx,
		store: store,
		pool:  workerpool.New(workers),
		log:   logf.Named("jobs"),
	}
}

// Submit validates the request and queues a training job, returning its
// immediately pollable state.
func (j *Jobs) Submit(modelName, dataURI string, cfg dnn.Config) (Job, error) {
	if modelName == "" {
		return Job{}, errors.Wrapf(ErrBadRequest, "model name is empty")
	}
	if dataURI == "" {
		return Job{}, errors.Wrapf(ErrBadRequest, "data uri is empty")
	}
	// a config without a schema takes it from the dataset when the job runs
	if cfg.Schema.NumFeatures() > 0 {
		if err := cfg.Validate(); err != nil {
			return Job{}, errors.Wrapf(ErrBadRequest, "%v", err)
		}
	}

	job := &Job{
		ID:        newJobID(),
		ModelName: modelName,
		DataURI:   dataURI,
		Config:    cfg,
		State:     JobPending,
		CreatedAt: time.Now().UTC(),
	}

	j.mu.Lock()
	j.jobs[job.ID] = job
	j.mu.Unlock()

	j.pool.AddOne(func() error {
		j.run(job.ID)
		return nil
	})

	j.log.Printf("queued job %s: train %s on %s (%d steps)",
		job.ID, modelName, dataURI, cfg.TrainSteps)
	return *job, nil
}

// Get returns a copy of the job's current state.
func (j *Jobs) Get(id string) (Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[id]
	if !ok {
		return Job{}, errors.Wrapf(ErrNotFound, "job %s", id)
	}
	return *job, nil
}

// List returns every job, newest first.
func (j *Jobs) List() []Job {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Job, 0, len(j.jobs))
	for _, job := range j.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID > out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Stop prevents queued jobs from starting. In-flight jobs stop at the next
// cancellation check of the trainer via the manager's context.
func (j *Jobs) Stop() {
	j.pool.Stop()
}

func (j *Jobs) run(id string) {
	start := time.Now()
	j.update(id, func(job *Job) { job.State = JobInProgress })
	jobsStarted.Add(1)

	var job Job
	j.mu.Lock()
	job = *j.jobs[id]
	j.mu.Unlock()

	uri, err := j.train(job)
	finished := time.Now().UTC()
	if err != nil {
		jobsFailed.Add(1)
		j.log.Printf("job %s failed: %v", id, err)
		j.update(id, func(job *Job) {
			job.State = JobFailed
			job.Error = err.Error()
			job.FinishedAt = &finished
		})
		return
	}

	jobDurations.RecordSince(start)
	j.log.Printf("job %s completed in %s", id, humanize.RelTime(start, finished, "", ""))
	j.update(id, func(job *Job) {
		job.State = JobCompleted
		job.ArtifactURI = uri
		job.FinishedAt = &finished
	})
}

func (j *Jobs) train(job Job) (string, error) {
	set, err := dataset.Open(job.DataURI)
	if err != nil {
		return "", err
	}

	cfg := job.Config
	if cfg.Schema.NumFeatures() == 0 {
		cfg.Schema = set.Schema
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	j.update(job.ID, func(jb *Job) { jb.Config = cfg })

	params, report, err := dnn.Train(j.ctx, cfg, set)
	if err != nil {
		return "", err
	}

	metrics, err := dnn.Evaluate(params, set)
	if err != nil {
		return "", err
	}

	art, uri, err := j.store.Put(job.ModelName, params, artifact.Meta{
		TrainDataURI: job.DataURI,
		TrainSteps:   cfg.TrainSteps,
		Metrics:      metrics,
	})
	if err != nil {
		return "", err
	}

	j.update(job.ID, func(job *Job) { job.ArtifactID = art.Meta.ID })
	j.log.Printf("job %s trained %s: %d epochs, train accuracy %.3f",
		job.ID, job.ModelName, report.Epochs, report.TrainAccuracy)
	return uri, nil
}

func (j *Jobs) update(id string, f func(*Job)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.jobs[id]; ok {
		f(job)
	}
}

func newJobID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405.000")))[:12]
	}
	return hex.EncodeToString(b[:])
}
