package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSection_Reuse(t *testing.T) {
	a := NewSection("test_reuse")
	b := NewSection("test_reuse")
	require.Same(t, a, b)

	c1 := a.Counter("requests")
	c2 := b.Counter("requests")
	require.Same(t, c1, c2)
}

func TestSnapshot(t *testing.T) {
	s := NewSection("test_snapshot")
	s.Counter("requests").Add(3)
	s.Ratio("cache").Hit()
	s.Ratio("cache").Hit()
	s.Ratio("cache").Miss()
	s.SampleDuration("predict").Record(10 * time.Millisecond)
	s.SampleDuration("predict").Record(30 * time.Millisecond)

	snap := Snapshot()["test_snapshot"]
	assert.EqualValues(t, 3, snap.Counters["requests"])

	ratio := snap.Ratios["cache"]
	assert.EqualValues(t, 2, ratio.Hits)
	assert.EqualValues(t, 3, ratio.Total)
	assert.InDelta(t, 2.0/3.0, ratio.Rate, 1e-9)

	sample := snap.Samples["predict"]
	assert.EqualValues(t, 2, sample.Count)
	assert.Equal(t, "20ms", sample.Avg)
	assert.Equal(t, "10ms", sample.Min)
	assert.Equal(t, "30ms", sample.Max)
}
