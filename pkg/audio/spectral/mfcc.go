package spectral

import (
	"fmt"
	"math"
)

// DCT applies an orthonormal type-II DCT along the first axis of a
// bands x frames matrix and keeps the first nCoeffs rows.
func DCT(s [][]float64, nCoeffs int) ([][]float64, error) {
	n := len(s)
	if n == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if nCoeffs <= 0 || nCoeffs > n {
		return nil, fmt.Errorf("coefficient count must be in [1, %d], got %d", n, nCoeffs)
	}
	frames := len(s[0])
	for i, row := range s {
		if len(row) != frames {
			return nil, fmt.Errorf("band %d has %d frames, expected %d", i, len(row), frames)
		}
	}

	out := make([][]float64, nCoeffs)
	N := float64(n)
	for k := range nCoeffs {
		scale := math.Sqrt(2 / N)
		if k == 0 {
			scale = math.Sqrt(1 / N)
		}
		basis := make([]float64, n)
		for i := range basis {
			basis[i] = scale * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/N)
		}

		out[k] = make([]float64, frames)
		for t := range frames {
			sum := 0.0
			for i := range n {
				sum += s[i][t] * basis[i]
			}
			out[k][t] = sum
		}
	}
	return out, nil
}

// MFCC computes nMFCC cepstral coefficients per frame from the decibel
// mel spectrogram of signal.
func (sa *SpectralAnalyzer) MFCC(signal []float64, cfg MelConfig, db DBConfig, nMFCC int) ([][]float64, error) {
	mel, err := sa.MelSpectrogram(signal, cfg)
	if err != nil {
		return nil, err
	}
	logMel, err := PowerToDB(mel, db)
	if err != nil {
		return nil, err
	}
	return DCT(logMel, nMFCC)
}
