package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/feature-pipeline/configs"
)

const envPrefix = "FEATURE_PIPELINE"

var (
	configFile   string
	verbose      bool
	logLevel     string
	logFile      string
	outputFormat string
	outputFile   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "feature-pipeline",
	Short: "Audio feature extraction and clustering pipeline",
	Long: `Chain audio feature extraction stages into a mini-batch k-means
clusterer and assign every clip of a dataset to a cluster.

Key features:
- Mel spectrogram, log amplitude, reshape and normalization stages
- Stage chains declared in configuration
- Per-sample or whole-batch stage application
- Deterministic mini-batch k-means with k-means++ seeding
- JSON, YAML, CSV and table output`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/feature-pipeline/feature-pipeline.yaml)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"also write logs to this file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format (json, table, csv, yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "",
		"write results to a file instead of stdout")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("output.file", rootCmd.PersistentFlags().Lookup("output-file"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(configFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		// Search config in home directory and /etc
		viper.AddConfigPath(home)
		viper.AddConfigPath(filepath.Join(home, ".config", "feature-pipeline"))
		viper.AddConfigPath("/etc/feature-pipeline")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("feature-pipeline")
		viper.SetConfigType("yaml")
	}

	// Environment variable support
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Set default values
	configs.SetDefaults(viper.GetViper())
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	// Bind all flags to viper
	return bindFlags(cmd, viper.GetViper())
}

// bindFlags binds each command-local flag to its viper key, which is the
// flag name with dashes replaced by underscores. An unset flag's default
// becomes the key's default, so a subcommand can ship its own defaults
// while config files and the environment still override them.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if mapped, ok := flagKeys[f.Name]; ok {
			key = mapped
		}

		// Bind to environment variable
		envVar := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envVar); err != nil {
			lastErr = err
		}

		if !f.Changed {
			v.SetDefault(key, f.Value.String())

			// Apply the resolved viper value to the flag so both agree
			if val := fmt.Sprintf("%v", v.Get(key)); val != f.Value.String() {
				if err := cmd.Flags().Set(f.Name, val); err != nil {
					lastErr = err
				}
			}
		}

		// Bind the flag to viper
		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// flagKeys maps subcommand flags onto nested configuration keys
var flagKeys = map[string]string{
	"clusters":    "clustering.n_clusters",
	"batch-size":  "clustering.batch_size",
	"max-iter":    "clustering.max_iter",
	"seed":        "clustering.seed",
	"sample-rate": "features.sample_rate",
	"n-fft":       "features.n_fft",
	"hop-length":  "features.hop_length",
	"n-mels":      "features.n_mels",
	"clip-length": "features.clip_length",
}

// GetConfig returns the current viper instance
func GetConfig() *viper.Viper {
	return viper.GetViper()
}
