package transform

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-go/dataset"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
)

// toyArtifact classifies (a, b) pairs with identity weights: whichever
// feature is larger wins.
func toyArtifact() *artifact.Artifact {
	return &artifact.Artifact{
		Meta: artifact.Meta{ID: "abc123", Name: "toy"},
		Params: dnn.Params{
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
		},
	}
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, ioutil.WriteFile(p, []byte(content), 0644))
	return p
}

func TestRun_WritesPredictions(t *testing.T) {
	in := writeInput(t, "a,b\n5,0\n0,5\n3,1\n")
	out := filepath.Join(t.TempDir(), "out.csv")

	results, err := Run(toyArtifact(), Options{Input: in, Output: out})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []int{1, 2, 3}, []int{results[0].Row, results[1].Row, results[2].Row})
	assert.Equal(t, 0, results[0].Class)
	assert.Equal(t, "neg", results[0].Label)
	assert.Equal(t, 1, results[1].Class)
	assert.Equal(t, "pos", results[1].Label)
	assert.Equal(t, 0, results[2].Class)
	for _, r := range results {
		assert.Greater(t, r.Score, 0.5, "row %d", r.Row)
	}

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	var written []Result
	require.NoError(t, gocsv.UnmarshalFile(f, &written))
	assert.Equal(t, results, written)
}

func TestRun_LabeledInputIgnoresExtraColumns(t *testing.T) {
	in := writeInput(t, "a,b,label\n5,0,neg\n0,5,whatever\n")

	results, err := Run(toyArtifact(), Options{Input: in})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Class)
	assert.Equal(t, 1, results[1].Class)
}

func TestRun_MatchesColumnsByName(t *testing.T) {
	// header order differs from schema order
	in := writeInput(t, "b,a\n0,5\n5,0\n")

	results, err := Run(toyArtifact(), Options{Input: in})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Class)
	assert.Equal(t, 1, results[1].Class)
}

func TestRun_MissingFeatureColumn(t *testing.T) {
	in := writeInput(t, "a,x\n1,2\n")

	_, err := Run(toyArtifact(), Options{Input: in})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing feature column "b"`)
}

func TestRun_BadValueNamesRow(t *testing.T) {
	in := writeInput(t, "a,b\n1,2\n1,oops\n")

	_, err := Run(toyArtifact(), Options{Input: in})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "feature b")
}

func TestRun_EmptyInput(t *testing.T) {
	in := writeInput(t, "a,b\n")

	_, err := Run(toyArtifact(), Options{Input: in})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no feature rows")
}

func TestRun_UnknownAccelerator(t *testing.T) {
	in := writeInput(t, "a,b\n1,2\n")

	_, err := Run(toyArtifact(), Options{Input: in, Accelerator: "accel.turbo"})
	require.Error(t, err)
}

func TestRun_AcceleratedMatchesPlain(t *testing.T) {
	// enough rows to split into several accel.large chunks
	content := "a,b\n"
	for i := 0; i < 100; i++ {
		if i%3 == 0 {
			content += "9,1\n"
		} else {
			content += "1,9\n"
		}
	}
	in := writeInput(t, content)

	plain, err := Run(toyArtifact(), Options{Input: in})
	require.NoError(t, err)
	accelerated, err := Run(toyArtifact(), Options{Input: in, Accelerator: "accel.large"})
	require.NoError(t, err)

	require.Equal(t, len(plain), len(accelerated))
	for i := range plain {
		assert.Equal(t, plain[i], accelerated[i], "row %d", i+1)
		want := 1
		if i%3 == 0 {
			want = 0
		}
		assert.Equal(t, want, plain[i].Class, "row %d", i+1)
	}
}

func TestRun_NoArtifact(t *testing.T) {
	_, err := Run(nil, Options{Input: "x.csv"})
	require.Error(t, err)
}
