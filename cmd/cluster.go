package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/feature-pipeline/configs"
	"github.com/RyanBlaney/feature-pipeline/internal/app"
	"github.com/RyanBlaney/feature-pipeline/pkg/features"
)

var clusterTimeout time.Duration

var clusterCmd = &cobra.Command{
	Use:   "cluster [dataset-file]",
	Short: "Extract features from a dataset and cluster its clips",
	Long: `Load a YAML or JSON dataset of clips, run the configured feature
stages and assign every clip to a mini-batch k-means cluster.

Clips carry either raw samples or partials to synthesize:

  sample_rate: 22050
  clips:
    - name: hum
      label: low
      partials: [{freq: 110, amplitude: 0.5}]
      duration: 1.0

Examples:
  # Cluster with the default mel chain
  feature-pipeline cluster clips.yaml --clusters 4

  # Use stages from a config file and write JSON results
  feature-pipeline cluster clips.json --config pipeline.yaml -o json --output-file results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	addPipelineFlags(clusterCmd, configs.GetDefaultConfig())

	clusterCmd.Flags().DurationVar(&clusterTimeout, "timeout", 5*time.Minute,
		"how long to wait for feature extraction and clustering")
}

// addPipelineFlags registers the feature and clustering flags shared by
// subcommands, defaulting to defaults. Values are read back through viper
// (see flagKeys).
func addPipelineFlags(cmd *cobra.Command, defaults *configs.Config) {
	cmd.Flags().Int("clusters", defaults.Clustering.K,
		"number of clusters")
	cmd.Flags().Int("batch-size", defaults.Clustering.BatchSize,
		"mini-batch size")
	cmd.Flags().Int("max-iter", defaults.Clustering.MaxIter,
		"maximum number of mini-batches")
	cmd.Flags().Uint64("seed", defaults.Clustering.Seed,
		"random seed")
	cmd.Flags().Int("sample-rate", defaults.Features.SampleRate,
		"sample rate for clips that name none")
	cmd.Flags().Int("n-mels", defaults.Features.NMels,
		"mel bands")
	cmd.Flags().Int("n-fft", defaults.Features.NFFT,
		"FFT size")
	cmd.Flags().Int("hop-length", defaults.Features.HopLength,
		"STFT hop length")
	cmd.Flags().Int("clip-length", defaults.Features.ClipLength,
		"trim or pad clips to this many samples (0 keeps lengths)")
}

func runCluster(cmd *cobra.Command, args []string) error {
	datasetFile := args[0]
	verbose := viper.GetBool("verbose")
	quiet = machineOutput()

	printHeader("Feature Pipeline Clustering", datasetFile)

	ctx, cancel := context.WithTimeout(context.Background(), clusterTimeout)
	defer cancel()

	timer := NewPerformanceTimer()
	timer.StartEvent("total")

	// Step 1: Configuration Loading
	timer.StartEvent("config_loading")
	printStep(1, "Configuration Loading")

	appConfig, err := configs.LoadConfig()
	if err != nil {
		printError("Failed to load application config: %v", err)
		return fmt.Errorf("failed to load application config: %w", err)
	}
	printSuccess("Application configuration loaded")
	timer.EndEvent("config_loading")

	// Step 2: Dataset Loading
	timer.StartEvent("dataset_loading")
	printStep(2, "Dataset Loading")

	dataset, err := app.LoadDataset(datasetFile)
	if err != nil {
		printError("Failed to load dataset: %v", err)
		return err
	}
	clips, err := dataset.ToClips(appConfig.Features.SampleRate)
	if err != nil {
		printError("Invalid dataset: %v", err)
		return err
	}
	timer.EndEvent("dataset_loading")
	printSuccess("Loaded %d clips in %v", len(clips), timer.GetDuration("dataset_loading"))

	return runPipeline(ctx, 3, datasetFile, appConfig, clips, verbose, timer)
}

// runPipeline builds the application and clusters clips, then prints a
// summary for table output.
func runPipeline(ctx context.Context, step int, source string, appConfig *configs.Config, clips []features.Clip, verbose bool, timer *PerformanceTimer) error {
	timer.StartEvent("clustering")
	printStep(step, "Feature Extraction and Clustering")

	application, err := app.NewApp(&app.Context{
		DatasetFile: source,
		Verbose:     verbose,
		Config:      appConfig,
	})
	if err != nil {
		printError("Failed to create application: %v", err)
		return err
	}

	if verbose {
		for i, spec := range appConfig.Features.StageSpecs() {
			printInfo("Stage %d: %s (%s)", i+1, spec.Name, spec.Transform)
		}
		printInfo("Estimator: mini-batch k-means, k=%d", appConfig.Clustering.K)
	}

	var result *app.Result
	if appConfig.Output.Format == "table" && appConfig.Output.File == "" {
		result, err = application.Cluster(ctx, clips)
	} else {
		result, err = application.Run(ctx, clips)
	}
	if err != nil {
		printError("Clustering failed: %v", err)
		return err
	}
	timer.EndEvent("clustering")
	printSuccess("Clustered %d clips into %d clusters in %v", result.Clips, result.Clusters, timer.GetDuration("clustering"))

	if len(result.ClusterSizes) < result.Clusters {
		printWarning("Only %d of %d clusters received clips", len(result.ClusterSizes), result.Clusters)
	}

	printRunSummary(result, timer)
	return nil
}
