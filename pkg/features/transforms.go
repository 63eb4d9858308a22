package features

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/feature-pipeline/pkg/audio/effects"
	"github.com/RyanBlaney/feature-pipeline/pkg/audio/spectral"
	"github.com/RyanBlaney/feature-pipeline/pkg/pipeline"
)

// DefaultSampleRate is used when neither the stage nor the sample names one
const DefaultSampleRate = 22050

// ShapeError reports a sample whose length disagrees with its batch
type ShapeError struct {
	Stage string
	Index int
	Want  int
	Got   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: sample %d has length %d, expected %d", e.Stage, e.Index, e.Got, e.Want)
}

// signalOf accepts a raw signal or a Clip. The returned rate is the
// clip's own rate, or 0 for raw signals.
func signalOf(stage string, sample any) ([]float64, int, error) {
	switch v := sample.(type) {
	case []float64:
		return v, 0, nil
	case Clip:
		return v.Samples, v.SampleRate, nil
	case *Clip:
		return v.Samples, v.SampleRate, nil
	default:
		return nil, 0, &pipeline.TypeError{Stage: stage, Expected: "[]float64 signal", Got: sample}
	}
}

func matrixOf(stage string, sample any) ([][]float64, error) {
	m, ok := sample.([][]float64)
	if !ok {
		return nil, &pipeline.TypeError{Stage: stage, Expected: "[][]float64", Got: sample}
	}
	return m, nil
}

// FixLength trims or zero-pads each signal to "size" samples.
type FixLength struct{}

func (FixLength) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check("size"); err != nil {
		return nil, err
	}
	if _, ok := params["size"]; !ok {
		return nil, &pipeline.ParamError{Key: "size", Reason: "required"}
	}
	size, err := params.Int("size", 0)
	if err != nil {
		return nil, err
	}
	y, _, err := signalOf("fix_length", sample)
	if err != nil {
		return nil, err
	}
	fixed, err := effects.FixLength(y, size)
	if err != nil {
		return nil, err
	}
	// clips stay clips so later stages still see their sample rate
	switch v := sample.(type) {
	case Clip:
		v.Samples = fixed
		return v, nil
	case *Clip:
		c := *v
		c.Samples = fixed
		return c, nil
	}
	return fixed, nil
}

// Remix reorders signal intervals, optionally snapping to zero crossings.
type Remix struct{}

func (Remix) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check("intervals", "align_zeros"); err != nil {
		return nil, err
	}
	intervals, err := parseIntervals(params["intervals"])
	if err != nil {
		return nil, err
	}
	align, err := params.Bool("align_zeros", false)
	if err != nil {
		return nil, err
	}
	y, _, err := signalOf("remix", sample)
	if err != nil {
		return nil, err
	}
	return effects.Remix(y, intervals, align)
}

func parseIntervals(v any) ([]effects.Interval, error) {
	switch iv := v.(type) {
	case nil:
		return nil, &pipeline.ParamError{Key: "intervals", Reason: "required"}
	case []effects.Interval:
		return iv, nil
	case [][]int:
		out := make([]effects.Interval, len(iv))
		for i, pair := range iv {
			if len(pair) != 2 {
				return nil, &pipeline.ParamError{Key: "intervals", Value: pair, Reason: "expected [start, end]"}
			}
			out[i] = effects.Interval{Start: pair[0], End: pair[1]}
		}
		return out, nil
	case []any:
		out := make([]effects.Interval, len(iv))
		for i, item := range iv {
			pair, err := cast.ToIntSliceE(item)
			if err != nil || len(pair) != 2 {
				return nil, &pipeline.ParamError{Key: "intervals", Value: item, Reason: "expected [start, end]"}
			}
			out[i] = effects.Interval{Start: pair[0], End: pair[1]}
		}
		return out, nil
	default:
		return nil, &pipeline.ParamError{Key: "intervals", Value: v, Reason: "expected a list of [start, end] pairs"}
	}
}

// MelSpectrogram converts each signal to an n_mels x frames power mel spectrogram.
type MelSpectrogram struct{}

var melKeys = []string{"sr", "n_fft", "hop_length", "win_length", "window", "center", "n_mels", "fmin", "fmax", "htk", "power"}

func (MelSpectrogram) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check(melKeys...); err != nil {
		return nil, err
	}
	y, clipRate, err := signalOf("melspectrogram", sample)
	if err != nil {
		return nil, err
	}

	defaultRate := DefaultSampleRate
	if clipRate > 0 {
		defaultRate = clipRate
	}
	sr, err := params.Int("sr", defaultRate)
	if err != nil {
		return nil, err
	}
	cfg, err := melConfig(params)
	if err != nil {
		return nil, err
	}

	return spectral.NewSpectralAnalyzer(sr).MelSpectrogram(y, cfg)
}

func melConfig(params pipeline.Params) (spectral.MelConfig, error) {
	cfg := spectral.DefaultMelConfig()
	var err error

	if cfg.STFT.NFFT, err = params.Int("n_fft", cfg.STFT.NFFT); err != nil {
		return cfg, err
	}
	if cfg.STFT.HopLength, err = params.Int("hop_length", cfg.STFT.NFFT/4); err != nil {
		return cfg, err
	}
	if cfg.STFT.WinLength, err = params.Int("win_length", 0); err != nil {
		return cfg, err
	}
	if cfg.STFT.Window, err = params.String("window", cfg.STFT.Window); err != nil {
		return cfg, err
	}
	if cfg.STFT.Center, err = params.Bool("center", cfg.STFT.Center); err != nil {
		return cfg, err
	}
	if cfg.NMels, err = params.Int("n_mels", cfg.NMels); err != nil {
		return cfg, err
	}
	if cfg.FMin, err = params.Float("fmin", cfg.FMin); err != nil {
		return cfg, err
	}
	if cfg.FMax, err = params.Float("fmax", cfg.FMax); err != nil {
		return cfg, err
	}
	if cfg.HTK, err = params.Bool("htk", cfg.HTK); err != nil {
		return cfg, err
	}
	if cfg.Power, err = params.Float("power", cfg.Power); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MFCC converts each signal to n_mfcc x frames cepstral coefficients
// taken from its decibel mel spectrogram.
type MFCC struct{}

func (MFCC) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check(append([]string{"n_mfcc", "top_db"}, melKeys...)...); err != nil {
		return nil, err
	}
	y, clipRate, err := signalOf("mfcc", sample)
	if err != nil {
		return nil, err
	}

	defaultRate := DefaultSampleRate
	if clipRate > 0 {
		defaultRate = clipRate
	}
	sr, err := params.Int("sr", defaultRate)
	if err != nil {
		return nil, err
	}
	cfg, err := melConfig(params)
	if err != nil {
		return nil, err
	}
	nMFCC, err := params.Int("n_mfcc", 20)
	if err != nil {
		return nil, err
	}
	db := spectral.DefaultDBConfig()
	if db.TopDB, err = params.Float("top_db", db.TopDB); err != nil {
		return nil, err
	}

	return spectral.NewSpectralAnalyzer(sr).MFCC(y, cfg, db, nMFCC)
}

// PowerToDB rescales a power spectrogram to decibels. "ref" is either a
// number or "max".
type PowerToDB struct{}

func (PowerToDB) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check("ref", "amin", "top_db"); err != nil {
		return nil, err
	}
	s, err := matrixOf("power_to_db", sample)
	if err != nil {
		return nil, err
	}

	cfg := spectral.DefaultDBConfig()
	if ref, ok := params["ref"].(string); ok {
		if !strings.EqualFold(ref, "max") {
			return nil, &pipeline.ParamError{Key: "ref", Value: ref, Reason: `expected a number or "max"`}
		}
		cfg.RefMax = true
	} else if cfg.Ref, err = params.Float("ref", cfg.Ref); err != nil {
		return nil, err
	}
	if cfg.AMin, err = params.Float("amin", cfg.AMin); err != nil {
		return nil, err
	}
	if cfg.TopDB, err = params.Float("top_db", cfg.TopDB); err != nil {
		return nil, err
	}

	return spectral.PowerToDB(s, cfg)
}

// Flatten reshapes a matrix into one row-major vector.
type Flatten struct{}

func (Flatten) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}
	m, err := matrixOf("flatten", sample)
	if err != nil {
		return nil, err
	}

	size := 0
	for _, row := range m {
		size += len(row)
	}
	out := make([]float64, 0, size)
	for _, row := range m {
		out = append(out, row...)
	}
	return out, nil
}

// Normalize standardizes each vector to zero mean and unit variance. A
// constant vector becomes all zeros.
type Normalize struct{}

func (Normalize) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}
	x, _, err := signalOf("normalize", sample)
	if err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return []float64{}, nil
	}

	mean, std := stat.PopMeanStdDev(x, nil)
	out := make([]float64, len(x))
	copy(out, x)
	floats.AddConst(-mean, out)
	if std > 0 {
		floats.Scale(1/std, out)
	}
	return out, nil
}

// Scale multiplies a scalar or vector by "factor".
type Scale struct{}

func (Scale) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check("factor"); err != nil {
		return nil, err
	}
	factor, err := params.Float("factor", 1)
	if err != nil {
		return nil, err
	}

	switch v := sample.(type) {
	case float64:
		return v * factor, nil
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		floats.Scale(factor, out)
		return out, nil
	default:
		return nil, &pipeline.TypeError{Stage: "scale", Expected: "float64 or []float64", Got: sample}
	}
}

// SpectralCentroid reduces each signal to its per-frame spectral centroid.
type SpectralCentroid struct{}

func (SpectralCentroid) Transform(sample any, params pipeline.Params) (any, error) {
	if err := params.Check("sr", "n_fft", "hop_length", "window", "center"); err != nil {
		return nil, err
	}
	y, clipRate, err := signalOf("spectral_centroid", sample)
	if err != nil {
		return nil, err
	}
	defaultRate := DefaultSampleRate
	if clipRate > 0 {
		defaultRate = clipRate
	}
	sr, err := params.Int("sr", defaultRate)
	if err != nil {
		return nil, err
	}
	cfg, err := melConfig(params)
	if err != nil {
		return nil, err
	}

	sa := spectral.NewSpectralAnalyzer(sr)
	spec, err := sa.STFT(y, cfg.STFT)
	if err != nil {
		return nil, err
	}
	return sa.SpectralCentroid(spec), nil
}

// Stack aggregates a batch into a single value: float64 elements become
// a []float64 and equal-length []float64 elements become a [][]float64.
// It is meant for non-iterate stages.
type Stack struct{}

func (Stack) Transform(batch any, params pipeline.Params) (any, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}
	items, ok := batch.([]any)
	if !ok {
		return nil, &pipeline.TypeError{Stage: "stack", Expected: "[]any batch", Got: batch}
	}
	if len(items) == 0 {
		return [][]float64{}, nil
	}

	switch items[0].(type) {
	case float64:
		out := make([]float64, len(items))
		for i, item := range items {
			v, ok := item.(float64)
			if !ok {
				return nil, &pipeline.TypeError{Stage: "stack", Expected: "float64", Got: item}
			}
			out[i] = v
		}
		return out, nil

	case []float64:
		out := make([][]float64, len(items))
		width := len(items[0].([]float64))
		for i, item := range items {
			row, ok := item.([]float64)
			if !ok {
				return nil, &pipeline.TypeError{Stage: "stack", Expected: "[]float64", Got: item}
			}
			if len(row) != width {
				return nil, &ShapeError{Stage: "stack", Index: i, Want: width, Got: len(row)}
			}
			out[i] = row
		}
		return out, nil

	default:
		return nil, &pipeline.TypeError{Stage: "stack", Expected: "float64 or []float64 elements", Got: items[0]}
	}
}
