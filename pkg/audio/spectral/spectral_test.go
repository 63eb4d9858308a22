package spectral

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func TestWindowPeriodicHann(t *testing.T) {
	w, err := Window(WindowHann, 4)
	require.NoError(t, err)

	want := []float64{0, 0.5, 1, 0.5}
	if diff := cmp.Diff(want, w, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("hann window mismatch (-want +got):\n%s", diff)
	}
}

func TestWindowRectangularAndErrors(t *testing.T) {
	w, err := Window(WindowRectangular, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, w)

	_, err = Window("triangle-ish", 8)
	assert.Error(t, err)

	_, err = Window(WindowHann, 0)
	assert.Error(t, err)
}

func TestReflectPad(t *testing.T) {
	assert.Equal(t, []float64{3, 2, 1, 2, 3, 4, 3, 2}, reflectPad([]float64{1, 2, 3, 4}, 2))
	assert.Equal(t, []float64{7, 7, 7}, reflectPad([]float64{7}, 1))
}

func TestSTFTPeakAtToneBin(t *testing.T) {
	const sampleRate = 8000
	sa := NewSpectralAnalyzer(sampleRate)

	spec, err := sa.STFT(sine(1000, sampleRate, sampleRate), STFTConfig{
		NFFT:      256,
		HopLength: 64,
		Window:    WindowHann,
		Center:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1+sampleRate/64, spec.TimeFrames)
	assert.Equal(t, 129, spec.FreqBins)
	assert.InDelta(t, 31.25, spec.FreqResolution, 1e-9)

	mid := spec.Magnitude[spec.TimeFrames/2]
	assert.Equal(t, 32, argmax(mid)) // 1000 Hz / 31.25 Hz per bin

	centroid := sa.SpectralCentroid(spec)[spec.TimeFrames/2]
	assert.InDelta(t, 1000, centroid, 20)

	rolloff := sa.SpectralRolloff(spec, 0.85)[spec.TimeFrames/2]
	assert.InDelta(t, 1000, rolloff, 35)
}

func TestSTFTWithoutCenter(t *testing.T) {
	sa := NewSpectralAnalyzer(8000)
	spec, err := sa.STFT(make([]float64, 1024), STFTConfig{NFFT: 256, HopLength: 128})
	require.NoError(t, err)
	assert.Equal(t, 1+(1024-256)/128, spec.TimeFrames)
}

func TestSTFTRejectsBadInput(t *testing.T) {
	sa := NewSpectralAnalyzer(8000)
	good := DefaultSTFTConfig()

	tests := []struct {
		name   string
		signal []float64
		cfg    STFTConfig
	}{
		{"empty signal", nil, good},
		{"zero n_fft", make([]float64, 10), STFTConfig{NFFT: 0, HopLength: 1}},
		{"zero hop", make([]float64, 10), STFTConfig{NFFT: 8, HopLength: 0}},
		{"window longer than n_fft", make([]float64, 10), STFTConfig{NFFT: 8, HopLength: 2, WinLength: 16}},
		{"too short uncentered", make([]float64, 10), STFTConfig{NFFT: 64, HopLength: 16}},
		{"bad window", make([]float64, 100), STFTConfig{NFFT: 8, HopLength: 2, Window: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sa.STFT(tt.signal, tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestMelScaleRoundTrip(t *testing.T) {
	assert.InDelta(t, 15.0, HzToMel(1000, false), 1e-9)
	assert.InDelta(t, 1000.0, HzToMel(1000, true), 0.05)

	for _, htk := range []bool{false, true} {
		for _, hz := range []float64{0, 60, 440, 1000, 4000, 11025} {
			assert.InDelta(t, hz, MelToHz(HzToMel(hz, htk), htk), 1e-6)
		}
	}
}

func TestMelFilterBankShape(t *testing.T) {
	bank, err := MelFilterBank(22050, 2048, 40, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, bank, 40)

	for m, row := range bank {
		require.Len(t, row, 1025)
		peak := row[argmax(row)]
		assert.Greater(t, peak, 0.0, "filter %d is empty", m)
		for _, w := range row {
			assert.GreaterOrEqual(t, w, 0.0)
		}
	}
}

func TestMelFilterBankRejectsBadRange(t *testing.T) {
	_, err := MelFilterBank(22050, 2048, 40, 5000, 1000, false)
	assert.Error(t, err)

	_, err = MelFilterBank(22050, 2048, 0, 0, 0, false)
	assert.Error(t, err)

	_, err = MelFilterBank(0, 2048, 10, 0, 0, false)
	assert.Error(t, err)
}

func TestMelSpectrogramPeakBand(t *testing.T) {
	const sampleRate = 8000
	sa := NewSpectralAnalyzer(sampleRate)

	cfg := DefaultMelConfig()
	cfg.STFT.NFFT = 512
	cfg.STFT.HopLength = 128
	cfg.NMels = 40

	mel, err := sa.MelSpectrogram(sine(1000, sampleRate, sampleRate), cfg)
	require.NoError(t, err)
	require.Len(t, mel, 40)
	frames := len(mel[0])
	assert.Equal(t, 1+sampleRate/128, frames)

	column := make([]float64, len(mel))
	for m := range mel {
		column[m] = mel[m][frames/2]
	}
	centers := MelFrequencies(cfg.NMels+2, 0, sampleRate/2, false)[1 : cfg.NMels+1]
	assert.InDelta(t, 1000, centers[argmax(column)], 120)
}

func TestMelSpectrogramRejectsZeroPower(t *testing.T) {
	cfg := DefaultMelConfig()
	cfg.Power = 0
	_, err := NewSpectralAnalyzer(22050).MelSpectrogram(make([]float64, 4096), cfg)
	assert.Error(t, err)
}

func TestPowerToDB(t *testing.T) {
	s := [][]float64{{1, 10, 100}, {0, 1000, 0.1}}
	approx := cmpopts.EquateApprox(0, 1e-9)

	cfg := DefaultDBConfig()
	cfg.TopDB = 0
	got, err := PowerToDB(s, cfg)
	require.NoError(t, err)
	want := [][]float64{{0, 10, 20}, {-100, 30, -10}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("power_to_db mismatch (-want +got):\n%s", diff)
	}

	cfg.TopDB = 35
	got, err = PowerToDB(s, cfg)
	require.NoError(t, err)
	want = [][]float64{{0, 10, 20}, {-5, 30, -5}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("top_db clipping mismatch (-want +got):\n%s", diff)
	}

	cfg = DefaultDBConfig()
	cfg.RefMax = true
	cfg.TopDB = 0
	got, err = PowerToDB([][]float64{{1, 10, 100}}, cfg)
	require.NoError(t, err)
	if diff := cmp.Diff([][]float64{{-20, -10, 0}}, got, approx); diff != "" {
		t.Errorf("ref=max mismatch (-want +got):\n%s", diff)
	}
}

func TestPowerToDBRejectsBadConfig(t *testing.T) {
	_, err := PowerToDB([][]float64{{1}}, DBConfig{Ref: 1, AMin: 0})
	assert.Error(t, err)

	_, err = PowerToDB([][]float64{{1}}, DBConfig{Ref: 1, AMin: 1e-10, TopDB: -1})
	assert.Error(t, err)
}
