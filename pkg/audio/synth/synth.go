// Package synth generates test signals: tones, harmonic stacks and noise.
package synth

import (
	"math"
	"math/rand/v2"
)

// Partial is one sinusoid in a harmonic stack
type Partial struct {
	Freq      float64
	Amplitude float64
}

// Tone returns n samples of a sine at freq Hz.
func Tone(freq, amplitude float64, sampleRate, n int) []float64 {
	return Harmonics([]Partial{{Freq: freq, Amplitude: amplitude}}, sampleRate, n)
}

// Harmonics sums the given partials.
func Harmonics(partials []Partial, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		for _, p := range partials {
			out[i] += p.Amplitude * math.Sin(2*math.Pi*p.Freq*t)
		}
	}
	return out
}

// Noise returns uniform white noise in [-amplitude, amplitude).
func Noise(amplitude float64, n int, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Mix adds signals sample by sample. The result has the length of the
// longest input.
func Mix(signals ...[]float64) []float64 {
	size := 0
	for _, s := range signals {
		size = max(size, len(s))
	}
	out := make([]float64, size)
	for _, s := range signals {
		for i, v := range s {
			out[i] += v
		}
	}
	return out
}

// Fade applies a linear fade-in and fade-out of the given length in place.
func Fade(signal []float64, length int) []float64 {
	length = min(length, len(signal)/2)
	for i := range length {
		g := float64(i) / float64(length)
		signal[i] *= g
		signal[len(signal)-1-i] *= g
	}
	return signal
}
