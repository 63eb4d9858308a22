package app

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/feature-pipeline/pkg/audio/synth"
	"github.com/RyanBlaney/feature-pipeline/pkg/features"
)

// Dataset is a set of clips to cluster. Each clip either carries raw
// samples or is synthesized from partials.
type Dataset struct {
	SampleRate int        `yaml:"sample_rate" json:"sample_rate"`
	Seed       uint64     `yaml:"seed" json:"seed"`
	Clips      []ClipSpec `yaml:"clips" json:"clips"`
}

// ClipSpec describes one clip of a dataset
type ClipSpec struct {
	Name       string     `yaml:"name" json:"name"`
	Label      string     `yaml:"label,omitempty" json:"label,omitempty"`
	SampleRate int        `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`
	Samples    []float64  `yaml:"samples,omitempty" json:"samples,omitempty"`
	Partials   []ToneSpec `yaml:"partials,omitempty" json:"partials,omitempty"`
	Duration   float64    `yaml:"duration,omitempty" json:"duration,omitempty"` // seconds, for synthesized clips
	Noise      float64    `yaml:"noise,omitempty" json:"noise,omitempty"`       // white noise amplitude added to synthesized clips
}

// ToneSpec is one partial of a synthesized clip
type ToneSpec struct {
	Freq      float64 `yaml:"freq" json:"freq"`
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
}

// LoadDataset loads a dataset from a YAML or JSON file
func LoadDataset(filePath string) (*Dataset, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("dataset file does not exist: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	// Determine file format
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		return parseYAMLDataset(data)
	case ".json":
		return parseJSONDataset(data)
	default:
		// Try YAML first, then JSON
		if ds, err := parseYAMLDataset(data); err == nil {
			return ds, nil
		}
		return parseJSONDataset(data)
	}
}

func parseYAMLDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse YAML dataset: %w", err)
	}
	return &ds, nil
}

func parseJSONDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse JSON dataset: %w", err)
	}
	return &ds, nil
}

// ToClips materializes the dataset. defaultRate applies to clips and
// datasets that name no sample rate.
func (ds *Dataset) ToClips(defaultRate int) ([]features.Clip, error) {
	if len(ds.Clips) == 0 {
		return nil, fmt.Errorf("dataset has no clips")
	}
	if ds.SampleRate > 0 {
		defaultRate = ds.SampleRate
	}

	rng := rand.New(rand.NewPCG(ds.Seed, ds.Seed+1))
	clips := make([]features.Clip, 0, len(ds.Clips))
	for i, spec := range ds.Clips {
		rate := defaultRate
		if spec.SampleRate > 0 {
			rate = spec.SampleRate
		}
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("clip-%03d", i)
		}

		samples := spec.Samples
		if len(samples) == 0 {
			if len(spec.Partials) == 0 || spec.Duration <= 0 {
				return nil, fmt.Errorf("clip %s needs samples or partials with a positive duration", name)
			}
			n := int(spec.Duration * float64(rate))
			partials := make([]synth.Partial, len(spec.Partials))
			for j, p := range spec.Partials {
				partials[j] = synth.Partial{Freq: p.Freq, Amplitude: p.Amplitude}
			}
			samples = synth.Harmonics(partials, rate, n)
			if spec.Noise > 0 {
				samples = synth.Mix(samples, synth.Noise(spec.Noise, n, rng))
			}
		}

		clips = append(clips, features.Clip{
			Name:       name,
			SampleRate: rate,
			Samples:    samples,
			Label:      spec.Label,
		})
	}
	return clips, nil
}

// DemoDataset returns low and high tone groups, perClass clips each.
func DemoDataset(sampleRate, perClass int, duration float64, seed uint64) *Dataset {
	ds := &Dataset{SampleRate: sampleRate, Seed: seed}
	groups := []struct {
		label string
		base  float64
	}{
		{"low", 220},
		{"high", 1760},
	}
	for _, g := range groups {
		for i := range perClass {
			f := g.base * (1 + 0.02*float64(i))
			ds.Clips = append(ds.Clips, ClipSpec{
				Name:     fmt.Sprintf("%s-%02d", g.label, i),
				Label:    g.label,
				Partials: []ToneSpec{{Freq: f, Amplitude: 0.5}, {Freq: 2 * f, Amplitude: 0.2}},
				Duration: duration,
				Noise:    0.01,
			})
		}
	}
	return ds
}
