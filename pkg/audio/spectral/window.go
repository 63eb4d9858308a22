package spectral

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

// Supported analysis windows
const (
	WindowHann        = "hann"
	WindowHamming     = "hamming"
	WindowBlackman    = "blackman"
	WindowRectangular = "rectangular"
)

// Window returns a periodic window of the given size, suitable for
// overlapping FFT frames.
func Window(name string, size int) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	var gen func(int) []float64
	switch strings.ToLower(name) {
	case WindowHann, "hanning", "":
		gen = window.Hann
	case WindowHamming:
		gen = window.Hamming
	case WindowBlackman:
		gen = window.Blackman
	case WindowRectangular, "boxcar", "ones":
		gen = window.Rectangular
	default:
		return nil, fmt.Errorf("unsupported window function: %s", name)
	}

	// go-dsp produces symmetric windows; dropping the last point of an
	// (n+1)-length window gives the periodic form.
	return gen(size + 1)[:size], nil
}

// padCenter zero-pads w on both sides to length size.
func padCenter(w []float64, size int) []float64 {
	if len(w) >= size {
		return w
	}
	out := make([]float64, size)
	offset := (size - len(w)) / 2
	copy(out[offset:], w)
	return out
}
