package serve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// seedStore writes one hand-built artifact and returns its model uri.
func seedStore(t *testing.T) (*artifact.Store, string) {
	t.Helper()

	params := &dnn.Params{
		Schema: dataset.Schema{
			Name:     "toy",
			Features: []string{"a", "b"},
			Classes:  []string{"neg", "pos"},
		},
		Normalizer: &dataset.Normalizer{Offset: []float64{0, 0}, Scale: []float64{1, 1}},
		Activation: "softplus",
		Layers: []dnn.Layer{
			{In: 2, Out: 2, W: []float64{1, 0, 0, 1}, B: []float64{0, 0}},
		},
	}

	store := artifact.NewStore(t.TempDir())
	_, uri, err := store.Put("toy", params, artifact.Meta{})
	require.NoError(t, err)
	return store, uri
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	_, uri := seedStore(t)
	cache, err := artifact.NewCache(4)
	require.NoError(t, err)
	return NewRegistry(cache), uri
}

func TestRegistry_Lifecycle(t *testing.T) {
	r, uri := newTestRegistry(t)

	info, err := r.Deploy("toy-ep", DeployConfig{ArtifactURI: uri})
	require.NoError(t, err)
	assert.Equal(t, StateInService, info.State)
	assert.Equal(t, 2, info.Features)
	assert.Equal(t, []string{"neg", "pos"}, info.Classes)
	assert.Equal(t, 1, info.Config.InstanceCount, "instance count defaults to 1")

	_, err = r.Deploy("toy-ep", DeployConfig{ArtifactURI: uri})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	got, err := r.Describe("toy-ep")
	require.NoError(t, err)
	assert.Equal(t, info.ArtifactID, got.ArtifactID)

	preds, err := r.Invoke("toy-ep", [][]float64{{5, 0}, {0, 5}})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, 0, preds[0].Class)
	assert.Equal(t, 1, preds[1].Class)

	require.NoError(t, r.Delete("toy-ep"))

	err = r.Delete("toy-ep")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = r.Invoke("toy-ep", [][]float64{{5, 0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_DeployValidation(t *testing.T) {
	r, uri := newTestRegistry(t)

	_, err := r.Deploy("", DeployConfig{ArtifactURI: uri})
	assert.True(t, errors.Is(err, ErrBadRequest))

	_, err = r.Deploy("ep", DeployConfig{})
	assert.True(t, errors.Is(err, ErrBadRequest))

	_, err = r.Deploy("ep", DeployConfig{ArtifactURI: uri, Accelerator: "accel.warp9"})
	assert.True(t, errors.Is(err, ErrBadRequest))

	_, err = r.Deploy("ep", DeployConfig{ArtifactURI: "/nope/model.json.gz"})
	require.Error(t, err)
	_, err = r.Describe("ep")
	assert.True(t, errors.Is(err, ErrNotFound), "failed deploy leaves nothing behind")
}

func TestRegistry_InvokeValidation(t *testing.T) {
	r, uri := newTestRegistry(t)
	_, err := r.Deploy("toy-ep", DeployConfig{ArtifactURI: uri})
	require.NoError(t, err)

	_, err = r.Invoke("toy-ep", nil)
	assert.True(t, errors.Is(err, ErrBadRequest))

	_, err = r.Invoke("toy-ep", [][]float64{{1, 2, 3}})
	assert.True(t, errors.Is(err, ErrBadRequest))

	_, err = r.Invoke("ghost", [][]float64{{1, 2}})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_AcceleratedMatchesPlain(t *testing.T) {
	r, uri := newTestRegistry(t)

	_, err := r.Deploy("plain", DeployConfig{ArtifactURI: uri})
	require.NoError(t, err)
	_, err = r.Deploy("fast", DeployConfig{ArtifactURI: uri, Accelerator: "accel.large"})
	require.NoError(t, err)

	instances := make([][]float64, 100)
	for i := range instances {
		instances[i] = []float64{float64(i%7) - 3, float64(i%5) - 2}
	}

	plain, err := r.Invoke("plain", instances)
	require.NoError(t, err)
	fast, err := r.Invoke("fast", instances)
	require.NoError(t, err)

	assert.Equal(t, plain, fast)
}

func TestRegistry_InflightGate(t *testing.T) {
	r, uri := newTestRegistry(t)
	_, err := r.Deploy("toy-ep", DeployConfig{ArtifactURI: uri, InstanceCount: 1})
	require.NoError(t, err)

	r.mu.RLock()
	ep := r.endpoints["toy-ep"]
	r.mu.RUnlock()
	require.Equal(t, perInstanceInflight, cap(ep.gate))

	// saturate the gate, then every invoke sheds
	for i := 0; i < cap(ep.gate); i++ {
		ep.gate <- struct{}{}
	}
	_, err = r.Invoke("toy-ep", [][]float64{{1, 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusy))

	// draining one slot lets requests through again
	<-ep.gate
	_, err = r.Invoke("toy-ep", [][]float64{{1, 2}})
	require.NoError(t, err)
}

func TestRegistry_SharedArtifactSurvivesDelete(t *testing.T) {
	r, uri := newTestRegistry(t)

	_, err := r.Deploy("a", DeployConfig{ArtifactURI: uri})
	require.NoError(t, err)
	_, err = r.Deploy("b", DeployConfig{ArtifactURI: uri})
	require.NoError(t, err)

	require.NoError(t, r.Delete("a"))

	preds, err := r.Invoke("b", [][]float64{{5, 0}})
	require.NoError(t, err)
	assert.Equal(t, 0, preds[0].Class)
}
