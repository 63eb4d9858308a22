package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	remixInput    = []float64{1, 1, -1, -1, 2, 2, -1, -1, 1, 1}
	remixExpected = []float64{-1, -1, -1, -1, 1, 1, 1, 1, 2, 2}
	remixOrder    = []Interval{{2, 4}, {6, 8}, {0, 2}, {8, 10}, {4, 6}}
)

func TestRemixMono(t *testing.T) {
	for _, align := range []bool{false, true} {
		got, err := Remix(remixInput, remixOrder, align)
		require.NoError(t, err)
		assert.Equal(t, remixExpected, got, "align_zeros=%v", align)
	}
}

func TestRemixStereo(t *testing.T) {
	stereo := [][]float64{remixInput, remixInput}
	for _, align := range []bool{false, true} {
		got, err := RemixChannels(stereo, remixOrder, align)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{remixExpected, remixExpected}, got, "align_zeros=%v", align)
	}
}

func TestRemixSnapsToZeroCrossings(t *testing.T) {
	y := []float64{1, 1, 1, -1, -1, -1, 1, 1}
	// crossings at 0, 3, 6 plus the end (8); [2, 5) snaps to [3, 6)
	got, err := Remix(y, []Interval{{2, 5}}, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1, -1}, got)
}

func TestRemixRejectsBadIntervals(t *testing.T) {
	_, err := Remix(remixInput, []Interval{{0, 11}}, false)
	assert.Error(t, err)

	_, err = Remix(remixInput, []Interval{{5, 3}}, false)
	assert.Error(t, err)

	_, err = RemixChannels([][]float64{{1, 2}, {1}}, nil, false)
	assert.Error(t, err)

	_, err = RemixChannels(nil, nil, false)
	assert.Error(t, err)
}

func TestZeroCrossings(t *testing.T) {
	assert.Equal(t, []int{0, 2, 4, 6, 8}, ZeroCrossings(remixInput, DefaultZeroThreshold, true))
	assert.Equal(t, []int{0, 1, 2}, ZeroCrossings([]float64{1, 0, -1}, 0, false))
	assert.Equal(t, []int{0, 2}, ZeroCrossings([]float64{1, 0, -1}, 0, true))
	assert.Equal(t, []int{0}, ZeroCrossings([]float64{1, 1e-12, 2}, DefaultZeroThreshold, true))
	assert.Nil(t, ZeroCrossings(nil, 0, true))
}

func TestFixLength(t *testing.T) {
	got, err := FixLength([]float64{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 0, 0}, got)

	got, err = FixLength([]float64{1, 2, 3}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)

	_, err = FixLength(nil, -1)
	assert.Error(t, err)
}

func TestToMono(t *testing.T) {
	assert.Equal(t, []float64{2, 0}, ToMono([][]float64{{1, 1}, {3, -1}}))
}
