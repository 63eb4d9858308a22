package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"gonum.org/v1/gonum/mat"
)

// MelConfig controls mel spectrogram computation
type MelConfig struct {
	STFT  STFTConfig `json:"stft"`
	NMels int        `json:"n_mels"`
	FMin  float64    `json:"fmin"`
	FMax  float64    `json:"fmax"` // 0 means Nyquist
	HTK   bool       `json:"htk"`  // HTK mel formula instead of Slaney
	Power float64    `json:"power"`
}

// DefaultMelConfig returns 128 Slaney mel bands over a power spectrogram
func DefaultMelConfig() MelConfig {
	return MelConfig{
		STFT:  DefaultSTFTConfig(),
		NMels: 128,
		Power: 2.0,
	}
}

const (
	slaneyFSP     = 200.0 / 3
	slaneyMinLog  = 1000.0
	slaneyLogStep = 0.06875177742094912 // ln(6.4) / 27
)

// HzToMel converts a frequency in Hz to mels.
func HzToMel(freq float64, htk bool) float64 {
	if htk {
		return 2595.0 * math.Log10(1.0+freq/700.0)
	}

	if freq < slaneyMinLog {
		return freq / slaneyFSP
	}
	return slaneyMinLog/slaneyFSP + math.Log(freq/slaneyMinLog)/slaneyLogStep
}

// MelToHz converts mels back to Hz.
func MelToHz(mel float64, htk bool) float64 {
	if htk {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}

	minLogMel := slaneyMinLog / slaneyFSP
	if mel < minLogMel {
		return mel * slaneyFSP
	}
	return slaneyMinLog * math.Exp(slaneyLogStep*(mel-minLogMel))
}

// MelFrequencies returns n frequencies evenly spaced on the mel scale
// between fmin and fmax, inclusive.
func MelFrequencies(n int, fmin, fmax float64, htk bool) []float64 {
	minMel := HzToMel(fmin, htk)
	maxMel := HzToMel(fmax, htk)

	freqs := make([]float64, n)
	for i := range n {
		var mel float64
		if n > 1 {
			mel = minMel + (maxMel-minMel)*float64(i)/float64(n-1)
		} else {
			mel = minMel
		}
		freqs[i] = MelToHz(mel, htk)
	}
	return freqs
}

// MelFilterBank builds an nMels x (nFFT/2+1) matrix of Slaney-normalized
// triangular filters.
func MelFilterBank(sampleRate, nFFT, nMels int, fmin, fmax float64, htk bool) ([][]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if nFFT <= 0 {
		return nil, fmt.Errorf("n_fft must be positive, got %d", nFFT)
	}
	if nMels <= 0 {
		return nil, fmt.Errorf("n_mels must be positive, got %d", nMels)
	}
	if fmax <= 0 {
		fmax = float64(sampleRate) / 2
	}
	if fmin < 0 || fmin >= fmax {
		return nil, fmt.Errorf("invalid mel frequency range [%g, %g]", fmin, fmax)
	}

	numBins := nFFT/2 + 1
	fftFreqs := make([]float64, numBins)
	for i := range numBins {
		fftFreqs[i] = float64(i) * float64(sampleRate) / float64(nFFT)
	}

	melF := MelFrequencies(nMels+2, fmin, fmax, htk)

	weights := make([][]float64, nMels)
	for m := range nMels {
		weights[m] = make([]float64, numBins)
		lowerWidth := melF[m+1] - melF[m]
		upperWidth := melF[m+2] - melF[m+1]
		enorm := 2.0 / (melF[m+2] - melF[m])

		for k, freq := range fftFreqs {
			lower := (freq - melF[m]) / lowerWidth
			upper := (melF[m+2] - freq) / upperWidth
			w := math.Max(0, math.Min(lower, upper))
			weights[m][k] = w * enorm
		}
	}

	return weights, nil
}

// MelSpectrogram computes an nMels x frames mel-scaled spectrogram.
func (sa *SpectralAnalyzer) MelSpectrogram(signal []float64, cfg MelConfig) ([][]float64, error) {
	if cfg.Power <= 0 {
		return nil, fmt.Errorf("power must be positive, got %g", cfg.Power)
	}

	spec, err := sa.STFT(signal, cfg.STFT)
	if err != nil {
		return nil, err
	}

	bank, err := MelFilterBank(sa.sampleRate, cfg.STFT.NFFT, cfg.NMels, cfg.FMin, cfg.FMax, cfg.HTK)
	if err != nil {
		return nil, err
	}

	// power spectrogram laid out bins x frames
	power := mat.NewDense(spec.FreqBins, spec.TimeFrames, nil)
	for t, frame := range spec.Magnitude {
		for f, mag := range frame {
			if cfg.Power == 2 {
				power.Set(f, t, mag*mag)
			} else {
				power.Set(f, t, math.Pow(mag, cfg.Power))
			}
		}
	}

	filters := mat.NewDense(cfg.NMels, spec.FreqBins, nil)
	for m, row := range bank {
		filters.SetRow(m, row)
	}

	var mel mat.Dense
	mel.Mul(filters, power)

	out := make([][]float64, cfg.NMels)
	for m := range cfg.NMels {
		out[m] = mat.Row(nil, m, &mel)
	}

	sa.logger.Debug("Mel spectrogram computed", logging.Fields{
		"n_mels":      cfg.NMels,
		"time_frames": spec.TimeFrames,
		"htk":         cfg.HTK,
	})

	return out, nil
}
