package configs

import (
	"github.com/spf13/viper"

	"github.com/RyanBlaney/feature-pipeline/pkg/cluster"
	"github.com/RyanBlaney/feature-pipeline/pkg/features"
)

// SetDefaults sets default configuration values for all components
func SetDefaults(v *viper.Viper) {
	// Feature extraction defaults
	setDefault(v, "features.sample_rate", features.DefaultSampleRate)
	setDefault(v, "features.n_fft", 2048)
	setDefault(v, "features.hop_length", 512)
	setDefault(v, "features.n_mels", 128)
	setDefault(v, "features.clip_length", 0)

	// Clustering defaults
	km := cluster.DefaultConfig()
	setDefault(v, "clustering.n_clusters", km.K)
	setDefault(v, "clustering.batch_size", km.BatchSize)
	setDefault(v, "clustering.max_iter", km.MaxIter)
	setDefault(v, "clustering.tol", km.Tolerance)
	setDefault(v, "clustering.max_no_improvement", km.MaxNoImprovement)
	setDefault(v, "clustering.seed", km.Seed)

	// Output defaults
	setDefault(v, "output.format", "table")
	setDefault(v, "output.file", "")
	setDefault(v, "output.precision", 3)
	setDefault(v, "output.include_centroids", false)
	setDefault(v, "output.colors", true)

	// Application defaults
	setDefault(v, "verbose", false)
	setDefault(v, "log_level", "info")
	setDefault(v, "log_file", "")
}

func setDefault(v *viper.Viper, key string, value any) {
	if !v.IsSet(key) {
		v.SetDefault(key, value)
	}
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Verbose:  false,
		LogLevel: "info",

		Features: GetDefaultFeaturesConfig(),

		Clustering: cluster.DefaultConfig(),

		Output: GetDefaultOutputConfig(),
	}
}

// GetDefaultFeaturesConfig returns the standard 128-band mel settings
func GetDefaultFeaturesConfig() FeaturesConfig {
	return FeaturesConfig{
		SampleRate: features.DefaultSampleRate,
		NFFT:       2048,
		HopLength:  512,
		NMels:      128,
	}
}

// FastFeaturesConfig returns a smaller mel configuration for quick runs
func FastFeaturesConfig() FeaturesConfig {
	return FeaturesConfig{
		SampleRate: 8000,
		NFFT:       512,
		HopLength:  256,
		NMels:      32,
	}
}

// GetDefaultOutputConfig returns default output settings
func GetDefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Format:    "table",
		Precision: 3,
		Colors:    true,
	}
}

// GetDefaultOutputConfigForFormat returns output config optimized for specific format
func GetDefaultOutputConfigForFormat(format string) OutputConfig {
	base := GetDefaultOutputConfig()
	base.Format = format

	switch format {
	case "json", "yaml":
		base.Colors = false
		base.Precision = 6
		base.IncludeCentroids = true
	case "csv":
		base.Colors = false
	case "table":
		base.Precision = 2
	default:
		// Keep defaults
	}

	return base
}
