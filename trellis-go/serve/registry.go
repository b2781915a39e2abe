// Package serve implements the serving daemon: an endpoint registry
// fronting trained artifacts, training jobs, and the HTTP API over both.
package serve

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/trellis-ml/trellis/trellis-go/accel"
	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
	"github.com/trellis-ml/trellis/trellis-golib/status"
)

// Inflight invocations tolerated per deployed instance before the endpoint
// starts shedding with ErrBusy.
const perInstanceInflight = 4

var (
	serveSection      = status.NewSection("serve")
	invocations       = serveSection.Counter("invocations")
	predictions       = serveSection.Counter("predictions")
	throttled         = serveSection.Counter("throttled")
	invokeDurations   = serveSection.SampleDuration("invoke")
	endpointsDeployed = serveSection.Counter("endpoints_deployed")
)

// DeployConfig is the user-facing shape of an endpoint.
type DeployConfig struct {
	ArtifactURI   string `json:"artifact"`
	InstanceCount int    `json:"instance_count"`
	InstanceType  string `json:"instance_type"`
	Accelerator   string `json:"accelerator"`
}

// State tracks an endpoint through its lifecycle.
type State string

const (
	StateCreating  State = "Creating"
	StateInService State = "InService"
	StateDeleting  State = "Deleting"
)

// EndpointInfo is the externally visible description of an endpoint.
type EndpointInfo struct {
	Name       string       `json:"name"`
	Config     DeployConfig `json:"config"`
	State      State        `json:"state"`
	CreatedAt  time.Time    `json:"created_at"`
	ArtifactID string       `json:"artifact_id"`
	Features   int          `json:"features"`
	Classes    []string     `json:"classes"`
}

type endpoint struct {
	info    EndpointInfo
	serving dataset.ServingInput
	profile accel.Profile
	gate    chan struct{}
}

// Registry is the in-memory table of deployed endpoints. Artifacts load
// through a shared LRU cache, so several endpoints serving the same model
// share one resident copy.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*endpoint

	cache *artifact.Cache
	log   *log.Logger
}

// NewRegistry returns an empty registry over the given artifact cache.
func NewRegistry(cache *artifact.Cache) *Registry {
	return &Registry{
		endpoints: make(map[string]*endpoint),
		cache:     cache,
		log:       logf.Named("registry"),
	}
}

// Deploy creates an endpoint serving the artifact at cfg.ArtifactURI. The
// artifact is loaded and validated before the endpoint goes InService.
func (r *Registry) Deploy(name string, cfg DeployConfig) (EndpointInfo, error) {
	if name == "" {
		return EndpointInfo{}, errors.Wrapf(ErrBadRequest, "endpoint name is empty")
	}
	if cfg.ArtifactURI == "" {
		return EndpointInfo{}, errors.Wrapf(ErrBadRequest, "artifact uri is empty")
	}
	if cfg.InstanceCount < 1 {
		cfg.InstanceCount = 1
	}
	profile, err := accel.Lookup(cfg.Accelerator)
	if err != nil {
		return EndpointInfo{}, errors.Wrapf(ErrBadRequest, "%v", err)
	}

	r.mu.Lock()
	if _, ok := r.endpoints[name]; ok {
		r.mu.Unlock()
		return EndpointInfo{}, errors.Wrapf(ErrAlreadyExists, "endpoint %s", name)
	}
	ep := &endpoint{
		info: EndpointInfo{
			Name:      name,
			Config:    cfg,
			State:     StateCreating,
			CreatedAt: time.Now().UTC(),
		},
		profile: profile,
		gate:    make(chan struct{}, cfg.InstanceCount*perInstanceInflight),
	}
	r.endpoints[name] = ep
	r.mu.Unlock()

	art, release, err := r.cache.Get(cfg.ArtifactURI)
	if err != nil {
		r.mu.Lock()
		delete(r.endpoints, name)
		r.mu.Unlock()
		return EndpointInfo{}, errors.Wrapf(err, "deploying endpoint %s", name)
	}
	serving := art.Params.ServingInput()
	info := ep.info
	info.ArtifactID = art.Meta.ID
	info.Features = serving.Features
	info.Classes = append([]string{}, art.Params.Schema.Classes...)
	release()

	r.mu.Lock()
	ep.serving = serving
	ep.info = info
	ep.info.State = StateInService
	info = ep.info
	r.mu.Unlock()

	endpointsDeployed.Add(1)
	r.log.Printf("deployed endpoint %s (artifact %s, %d instances, accelerator %q)",
		name, info.ArtifactID, cfg.InstanceCount, cfg.Accelerator)
	return info, nil
}

// Describe returns the endpoint's current description.
func (r *Registry) Describe(name string) (EndpointInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[name]
	if !ok {
		return EndpointInfo{}, errors.Wrapf(ErrNotFound, "endpoint %s", name)
	}
	return ep.info, nil
}

// List returns every endpoint, ordered by creation time.
func (r *Registry) List() []EndpointInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]EndpointInfo, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		infos = append(infos, ep.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Delete removes the endpoint and drops its artifact from the cache.
// Deleting an unknown or already-deleted endpoint returns ErrNotFound.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	ep, ok := r.endpoints[name]
	if !ok {
		r.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "endpoint %s", name)
	}
	ep.info.State = StateDeleting
	delete(r.endpoints, name)
	uri := ep.info.Config.ArtifactURI
	stillServed := false
	for _, other := range r.endpoints {
		if other.info.Config.ArtifactURI == uri {
			stillServed = true
			break
		}
	}
	r.mu.Unlock()

	if !stillServed {
		r.cache.Evict(uri)
	}
	r.log.Printf("deleted endpoint %s", name)
	return nil
}

// Invoke classifies the instances against the endpoint's model. Shape
// violations return ErrBadRequest; saturation returns ErrBusy.
func (r *Registry) Invoke(name string, instances [][]float64) ([]dnn.Prediction, error) {
	invocations.Add(1)
	defer invokeDurations.RecordSince(time.Now())

	r.mu.RLock()
	ep, ok := r.endpoints[name]
	if ok && ep.info.State != StateInService {
		ok = false
	}
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "endpoint %s", name)
	}

	if len(instances) == 0 {
		return nil, errors.Wrapf(ErrBadRequest, "no instances")
	}
	for i, x := range instances {
		if err := ep.serving.Check(x); err != nil {
			return nil, errors.Wrapf(ErrBadRequest, "instance %d: %v", i, err)
		}
	}

	select {
	case ep.gate <- struct{}{}:
		defer func() { <-ep.gate }()
	default:
		throttled.Add(1)
		return nil, errors.Wrapf(ErrBusy, "endpoint %s", name)
	}

	art, release, err := r.cache.Get(ep.info.Config.ArtifactURI)
	if err != nil {
		return nil, errors.Wrapf(err, "endpoint %s", name)
	}
	defer release()

	preds, err := accel.NewEngine(ep.profile, &art.Params).Predict(instances)
	if err != nil {
		return nil, errors.Wrapf(err, "endpoint %s", name)
	}
	predictions.Add(int64(len(preds)))
	return preds, nil
}
