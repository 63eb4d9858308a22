// Package effects implements time-domain signal edits used ahead of
// feature extraction.
package effects

import (
	"fmt"
	"math"
	"sort"
)

// DefaultZeroThreshold treats samples this close to zero as exactly zero
const DefaultZeroThreshold = 1e-10

// Interval is a half-open sample range [Start, End)
type Interval struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// ZeroCrossings returns the indices i where sign(y[i]) differs from
// sign(y[i-1]). Index 0 always counts as a crossing. Values with
// |y| <= threshold are treated as zero, and zero counts as positive when
// zeroPos is set (otherwise zero is its own sign class).
func ZeroCrossings(y []float64, threshold float64, zeroPos bool) []int {
	if len(y) == 0 {
		return nil
	}

	sign := func(v float64) int {
		if math.Abs(v) <= threshold {
			v = 0
		}
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		case zeroPos:
			return 1
		default:
			return 0
		}
	}

	crossings := []int{0}
	prev := sign(y[0])
	for i := 1; i < len(y); i++ {
		cur := sign(y[i])
		if cur != prev {
			crossings = append(crossings, i)
		}
		prev = cur
	}
	return crossings
}

// Remix concatenates the given intervals of y in order. With alignZeros
// each interval boundary snaps to the nearest zero crossing of y, where
// the end of the signal also counts as a crossing.
func Remix(y []float64, intervals []Interval, alignZeros bool) ([]float64, error) {
	out, err := RemixChannels([][]float64{y}, intervals, alignZeros)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// RemixChannels is Remix for multi-channel audio. Zero crossings are
// taken from the mono mix so all channels are cut at the same samples.
func RemixChannels(channels [][]float64, intervals []Interval, alignZeros bool) ([][]float64, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels to remix")
	}
	n := len(channels[0])
	for c, ch := range channels {
		if len(ch) != n {
			return nil, fmt.Errorf("channel %d has %d samples, expected %d", c, len(ch), n)
		}
	}

	var zeros []int
	if alignZeros {
		zeros = append(ZeroCrossings(ToMono(channels), DefaultZeroThreshold, true), n)
	}

	out := make([][]float64, len(channels))
	for c := range out {
		out[c] = []float64{}
	}

	for i, iv := range intervals {
		if iv.Start < 0 || iv.End > n || iv.Start > iv.End {
			return nil, fmt.Errorf("interval %d [%d, %d) is out of range for %d samples", i, iv.Start, iv.End, n)
		}
		if alignZeros {
			iv = Interval{Start: nearest(zeros, iv.Start), End: nearest(zeros, iv.End)}
		}
		for c, ch := range channels {
			out[c] = append(out[c], ch[iv.Start:iv.End]...)
		}
	}
	return out, nil
}

// ToMono averages channels sample by sample.
func ToMono(channels [][]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	mono := make([]float64, len(channels[0]))
	for _, ch := range channels {
		for i := range mono {
			mono[i] += ch[i]
		}
	}
	for i := range mono {
		mono[i] /= float64(len(channels))
	}
	return mono
}

// FixLength trims y or zero-pads it at the end to exactly size samples.
func FixLength(y []float64, size int) ([]float64, error) {
	if size < 0 {
		return nil, fmt.Errorf("size must be non-negative, got %d", size)
	}
	out := make([]float64, size)
	copy(out, y)
	return out, nil
}

// nearest returns the value in the sorted slice events closest to x,
// preferring the earlier one on ties.
func nearest(events []int, x int) int {
	i := sort.SearchInts(events, x)
	if i == len(events) {
		return events[len(events)-1]
	}
	if i == 0 || events[i] == x {
		return events[i]
	}
	if x-events[i-1] <= events[i]-x {
		return events[i-1]
	}
	return events[i]
}
