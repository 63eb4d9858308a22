package configs

import (
	"fmt"
	"slices"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/feature-pipeline/pkg/cluster"
	"github.com/RyanBlaney/feature-pipeline/pkg/features"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose  bool   `mapstructure:"verbose"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Feature extraction stages
	Features FeaturesConfig `mapstructure:"features"`

	// Terminal estimator
	Clustering cluster.Config `mapstructure:"clustering"`

	// Output configuration
	Output OutputConfig `mapstructure:"output"`
}

// FeaturesConfig describes the feature extraction chain. When Stages is
// empty the standard mel chain is built from the remaining fields.
type FeaturesConfig struct {
	SampleRate int                  `mapstructure:"sample_rate"`
	NFFT       int                  `mapstructure:"n_fft"`
	HopLength  int                  `mapstructure:"hop_length"`
	NMels      int                  `mapstructure:"n_mels"`
	ClipLength int                  `mapstructure:"clip_length"` // samples; 0 leaves clip lengths untouched
	Stages     []features.StageSpec `mapstructure:"stages"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Format           string `mapstructure:"format"`
	File             string `mapstructure:"file"`
	Precision        int    `mapstructure:"precision"`
	IncludeCentroids bool   `mapstructure:"include_centroids"`
	Colors           bool   `mapstructure:"colors"`
}

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validOutputFormats = []string{"json", "yaml", "csv", "table"}
)

// StageSpecs returns the configured stages, or the standard mel chain
// (optionally preceded by fix_length) when none are configured.
func (f FeaturesConfig) StageSpecs() []features.StageSpec {
	if len(f.Stages) > 0 {
		return f.Stages
	}

	specs := features.MelPipelineSpecs(f.NFFT, f.HopLength, f.NMels)
	if f.ClipLength > 0 {
		fix := features.StageSpec{
			Name:      "fix_length",
			Transform: "fix_length",
			Params:    map[string]any{"size": f.ClipLength},
		}
		specs = append([]features.StageSpec{fix}, specs...)
	}
	return specs
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom decodes configuration from v after applying defaults.
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if !slices.Contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level %q (expected one of %v)", config.LogLevel, validLogLevels)
	}

	if !slices.Contains(validOutputFormats, config.Output.Format) {
		return fmt.Errorf("invalid output format %q (expected one of %v)", config.Output.Format, validOutputFormats)
	}

	if config.Output.Precision < 0 {
		return fmt.Errorf("output precision cannot be negative")
	}

	if config.Features.SampleRate <= 0 {
		return fmt.Errorf("feature sample rate must be positive")
	}

	if config.Features.ClipLength < 0 {
		return fmt.Errorf("clip length cannot be negative")
	}

	if len(config.Features.Stages) == 0 {
		if config.Features.NFFT <= 0 {
			return fmt.Errorf("n_fft must be positive")
		}
		if config.Features.HopLength <= 0 {
			return fmt.Errorf("hop length must be positive")
		}
		if config.Features.NMels <= 0 {
			return fmt.Errorf("n_mels must be positive")
		}
	}

	for i, stage := range config.Features.Stages {
		if stage.Transform == "" {
			return fmt.Errorf("stage %d has no transform", i)
		}
	}

	if err := config.Clustering.Validate(); err != nil {
		return fmt.Errorf("invalid clustering configuration: %w", err)
	}

	return nil
}
