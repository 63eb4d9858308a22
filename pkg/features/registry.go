package features

import (
	"fmt"
	"sort"

	"github.com/RyanBlaney/feature-pipeline/pkg/pipeline"
)

// Entry describes a registered transform and how it is usually applied
type Entry struct {
	Transform   pipeline.Transform
	Iterate     bool
	Description string
}

// Registry maps transform names to their implementations
type Registry struct {
	entries map[string]Entry
}

// NewRegistry returns a registry holding the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]Entry)}
	r.Register("fix_length", Entry{FixLength{}, true, "trim or zero-pad each signal to a fixed size"})
	r.Register("remix", Entry{Remix{}, true, "reorder signal intervals"})
	r.Register("melspectrogram", Entry{MelSpectrogram{}, true, "power mel spectrogram (n_mels x frames)"})
	r.Register("mfcc", Entry{MFCC{}, true, "mel-frequency cepstral coefficients (n_mfcc x frames)"})
	r.Register("power_to_db", Entry{PowerToDB{}, true, "convert power to decibels"})
	r.Register("spectral_centroid", Entry{SpectralCentroid{}, true, "per-frame spectral centroid"})
	r.Register("flatten", Entry{Flatten{}, true, "reshape a matrix into a vector"})
	r.Register("normalize", Entry{Normalize{}, true, "zero-mean unit-variance per vector"})
	r.Register("scale", Entry{Scale{}, true, "multiply by a constant factor"})
	r.Register("stack", Entry{Stack{}, false, "aggregate a batch into one matrix"})
	return r
}

// Register adds or replaces a transform.
func (r *Registry) Register(name string, entry Entry) {
	r.entries[name] = entry
}

// Lookup finds a transform by name
func (r *Registry) Lookup(name string) (Entry, error) {
	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("unknown transform: %s", name)
	}
	return entry, nil
}

// Names lists registered transforms in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StageSpec declares one adapter stage.
type StageSpec struct {
	Name        string         `mapstructure:"name" yaml:"name" json:"name"`
	Transform   string         `mapstructure:"transform" yaml:"transform" json:"transform"`
	Iterate     *bool          `mapstructure:"iterate" yaml:"iterate,omitempty" json:"iterate,omitempty"` // nil uses the transform's default
	TargetField string         `mapstructure:"target_field" yaml:"target_field,omitempty" json:"target_field,omitempty"`
	Params      map[string]any `mapstructure:"params" yaml:"params,omitempty" json:"params,omitempty"`
}

// NewStage builds an adapter for spec.
func (r *Registry) NewStage(spec StageSpec) (*pipeline.Adapter, error) {
	entry, err := r.Lookup(spec.Transform)
	if err != nil {
		return nil, err
	}

	iterate := entry.Iterate
	if spec.Iterate != nil {
		iterate = *spec.Iterate
	}

	opts := []pipeline.AdapterOption{pipeline.WithIterate(iterate)}
	if spec.TargetField != "" {
		opts = append(opts, pipeline.WithTargetField(spec.TargetField))
	}
	return pipeline.NewAdapter(entry.Transform, pipeline.Params(spec.Params), opts...), nil
}

// Steps builds named pipeline steps for specs, in order. A spec without
// a name is named after its transform.
func (r *Registry) Steps(specs []StageSpec) ([]pipeline.Step, error) {
	steps := make([]pipeline.Step, 0, len(specs))
	for i, spec := range specs {
		stage, err := r.NewStage(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to build stage %d: %w", i, err)
		}
		name := spec.Name
		if name == "" {
			name = spec.Transform
		}
		steps = append(steps, pipeline.Step{Name: name, Stage: stage})
	}
	return steps, nil
}

// MelPipelineSpecs is the standard chain: mel spectrogram, log
// amplitude, flatten, stack. The mel stage receives whole clips and
// analyses each one at its own sample rate.
func MelPipelineSpecs(nFFT, hopLength, nMels int) []StageSpec {
	return []StageSpec{
		{
			Name:      "melspectrogram",
			Transform: "melspectrogram",
			Params: map[string]any{
				"n_fft":      nFFT,
				"hop_length": hopLength,
				"n_mels":     nMels,
			},
		},
		{Name: "log_amplitude", Transform: "power_to_db", Params: map[string]any{"ref": "max"}},
		{Name: "flatten", Transform: "flatten"},
		{Name: "stack", Transform: "stack"},
	}
}
