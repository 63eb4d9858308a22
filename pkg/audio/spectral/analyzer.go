package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/mjibson/go-dsp/fft"
)

// STFTConfig controls framing for the short-time Fourier transform
type STFTConfig struct {
	NFFT      int    `json:"n_fft"`
	HopLength int    `json:"hop_length"`
	WinLength int    `json:"win_length"` // 0 means NFFT
	Window    string `json:"window"`
	Center    bool   `json:"center"` // reflect-pad by NFFT/2 so frame t is centered on t*HopLength
}

// DefaultSTFTConfig mirrors the usual 2048/512 Hann analysis
func DefaultSTFTConfig() STFTConfig {
	return STFTConfig{
		NFFT:      2048,
		HopLength: 512,
		Window:    WindowHann,
		Center:    true,
	}
}

// Spectrogram holds the magnitude of an STFT
type Spectrogram struct {
	Magnitude      [][]float64 `json:"magnitude"` // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`
	FreqBins       int         `json:"freq_bins"`
	SampleRate     int         `json:"sample_rate"`
	NFFT           int         `json:"n_fft"`
	HopLength      int         `json:"hop_length"`
	FreqResolution float64     `json:"freq_resolution"` // Hz per bin
	TimeResolution float64     `json:"time_resolution"` // seconds per frame
}

// SpectralAnalyzer provides framed FFT analysis at a fixed sample rate
type SpectralAnalyzer struct {
	sampleRate int
	logger     logging.Logger
}

// NewSpectralAnalyzer creates a new spectral analyzer
func NewSpectralAnalyzer(sampleRate int) *SpectralAnalyzer {
	return &SpectralAnalyzer{
		sampleRate: sampleRate,
		logger:     logging.NewDefaultLogger(),
	}
}

// SampleRate returns the analyzer's sample rate in Hz
func (sa *SpectralAnalyzer) SampleRate() int {
	return sa.sampleRate
}

// STFT computes the magnitude short-time Fourier transform of signal
func (sa *SpectralAnalyzer) STFT(signal []float64, cfg STFTConfig) (*Spectrogram, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if sa.sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sa.sampleRate)
	}
	if cfg.NFFT <= 0 {
		return nil, fmt.Errorf("n_fft must be positive, got %d", cfg.NFFT)
	}
	if cfg.HopLength <= 0 {
		return nil, fmt.Errorf("hop_length must be positive, got %d", cfg.HopLength)
	}
	winLength := cfg.WinLength
	if winLength == 0 {
		winLength = cfg.NFFT
	}
	if winLength < 0 || winLength > cfg.NFFT {
		return nil, fmt.Errorf("win_length must be in (0, n_fft], got %d", winLength)
	}

	win, err := Window(cfg.Window, winLength)
	if err != nil {
		return nil, err
	}
	win = padCenter(win, cfg.NFFT)

	padded := signal
	if cfg.Center {
		padded = reflectPad(signal, cfg.NFFT/2)
	}
	if len(padded) < cfg.NFFT {
		return nil, fmt.Errorf("signal of length %d is too short for n_fft=%d", len(padded), cfg.NFFT)
	}

	timeFrames := 1 + (len(padded)-cfg.NFFT)/cfg.HopLength
	freqBins := cfg.NFFT/2 + 1

	magnitude := make([][]float64, timeFrames)
	frame := make([]float64, cfg.NFFT)
	for t := range timeFrames {
		offset := t * cfg.HopLength
		for i := range cfg.NFFT {
			frame[i] = padded[offset+i] * win[i]
		}

		spectrum := fft.FFTReal(frame)
		magnitude[t] = make([]float64, freqBins)
		for f := range freqBins {
			magnitude[t][f] = cmplx.Abs(spectrum[f])
		}
	}

	result := &Spectrogram{
		Magnitude:      magnitude,
		TimeFrames:     timeFrames,
		FreqBins:       freqBins,
		SampleRate:     sa.sampleRate,
		NFFT:           cfg.NFFT,
		HopLength:      cfg.HopLength,
		FreqResolution: float64(sa.sampleRate) / float64(cfg.NFFT),
		TimeResolution: float64(cfg.HopLength) / float64(sa.sampleRate),
	}

	sa.logger.Debug("STFT computation completed", logging.Fields{
		"time_frames":     result.TimeFrames,
		"freq_bins":       result.FreqBins,
		"freq_resolution": result.FreqResolution,
	})

	return result, nil
}

// FrequencyBins returns the center frequency of each FFT bin for nFFT
func (sa *SpectralAnalyzer) FrequencyBins(nFFT int) []float64 {
	numBins := nFFT/2 + 1
	freqs := make([]float64, numBins)
	for i := range numBins {
		freqs[i] = float64(i) * float64(sa.sampleRate) / float64(nFFT)
	}
	return freqs
}

// SpectralCentroid computes the magnitude-weighted mean frequency of each frame
func (sa *SpectralAnalyzer) SpectralCentroid(spec *Spectrogram) []float64 {
	freqs := sa.FrequencyBins(spec.NFFT)
	centroids := make([]float64, spec.TimeFrames)

	for t, frame := range spec.Magnitude {
		numerator := 0.0
		denominator := 0.0
		for i := range min(len(frame), len(freqs)) {
			numerator += freqs[i] * frame[i]
			denominator += frame[i]
		}
		if denominator > 0 {
			centroids[t] = numerator / denominator
		}
	}

	return centroids
}

// SpectralRolloff returns, per frame, the frequency below which
// threshold of the frame's energy lies
func (sa *SpectralAnalyzer) SpectralRolloff(spec *Spectrogram, threshold float64) []float64 {
	freqs := sa.FrequencyBins(spec.NFFT)
	rolloff := make([]float64, spec.TimeFrames)

	for t, frame := range spec.Magnitude {
		totalEnergy := 0.0
		for _, mag := range frame {
			totalEnergy += mag * mag
		}
		if totalEnergy == 0 {
			continue
		}

		targetEnergy := threshold * totalEnergy
		cumulativeEnergy := 0.0
		rolloff[t] = freqs[len(freqs)-1]
		for i, mag := range frame {
			cumulativeEnergy += mag * mag
			if cumulativeEnergy >= targetEnergy {
				rolloff[t] = freqs[i]
				break
			}
		}
	}

	return rolloff
}

// reflectPad mirrors pad samples onto each end of x without repeating
// the edge sample.
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	for i := range out {
		out[i] = x[reflectIndex(i-pad, n)]
	}
	return out
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i = int(math.Abs(float64(i))) % period
	if i >= n {
		i = period - i
	}
	return i
}
