package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/latency-benchmark-common/output"
	"github.com/google/uuid"
	"github.com/tunein/go-logging/v7/pkg/logger"
	"github.com/tunein/go-logging/v7/pkg/logger/logtypes"
	"github.com/tunein/go-logging/v7/pkg/rootcollector"
	"github.com/tunein/go-logging/v7/pkg/rootlogger"

	"github.com/RyanBlaney/feature-pipeline/configs"
	"github.com/RyanBlaney/feature-pipeline/pkg/cluster"
	"github.com/RyanBlaney/feature-pipeline/pkg/features"
	"github.com/RyanBlaney/feature-pipeline/pkg/pipeline"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	DatasetFile  string
	OutputFile   string
	OutputFormat string
	Verbose      bool

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// App handles the clustering application lifecycle
type App struct {
	ctx      *Context
	config   *configs.Config
	registry *features.Registry
	logger   logging.Logger
}

// Assignment is the cluster chosen for one clip
type Assignment struct {
	Clip    string `json:"clip" yaml:"clip"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Cluster int    `json:"cluster" yaml:"cluster"`
}

// Result summarizes one clustering run
type Result struct {
	RunID        string        `json:"run_id" yaml:"run_id"`
	Timestamp    time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Stages       []string      `json:"stages" yaml:"stages"`
	Clips        int           `json:"clips" yaml:"clips"`
	Features     int           `json:"features" yaml:"features"`
	Clusters     int           `json:"clusters" yaml:"clusters"`
	Iterations   int           `json:"iterations" yaml:"iterations"`
	Inertia      float64       `json:"inertia" yaml:"inertia"`
	ClusterSizes map[int]int   `json:"cluster_sizes" yaml:"cluster_sizes"`
	Purity       float64       `json:"purity,omitempty" yaml:"purity,omitempty"` // only when clips carry labels
	Assignments  []Assignment  `json:"assignments" yaml:"assignments"`
	Centroids    [][]float64   `json:"centroids,omitempty" yaml:"centroids,omitempty"`
}

// NewApp creates a new application from a loaded configuration
func NewApp(ctx *Context) (*App, error) {
	if ctx.Config == nil {
		ctx.Config = configs.GetDefaultConfig()
	}
	if ctx.OutputFormat != "" {
		ctx.Config.Output.Format = ctx.OutputFormat
	}
	if ctx.OutputFile != "" {
		ctx.Config.Output.File = ctx.OutputFile
	}
	if ctx.Verbose {
		ctx.Config.Verbose = true
	}
	if err := configs.ValidateConfig(ctx.Config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Set up logging
	log := setupLogging(ctx)
	ctx.Logger = log

	log.Debug("Feature pipeline application initialized", logging.Fields{
		"dataset_file":  ctx.DatasetFile,
		"output_format": ctx.Config.Output.Format,
		"n_clusters":    ctx.Config.Clustering.K,
		"stages":        len(ctx.Config.Features.StageSpecs()),
	})

	return &App{
		ctx:      ctx,
		config:   ctx.Config,
		registry: features.NewRegistry(),
		logger:   log,
	}, nil
}

// setupLogging configures logging based on context. A caller-supplied
// logger is kept; either way log_level (debug when verbose) applies. A
// log file routes the root logger there as well.
func setupLogging(ctx *Context) logging.Logger {
	log := ctx.Logger
	if log == nil {
		log = logging.NewDefaultLogger()
	}
	log.SetLevel(logLevel(ctx.Config))

	if ctx.Config.LogFile != "" {
		// the file sink records info and above regardless of log_level
		err := rootlogger.Configure(logger.LogOptions{
			Out:          ctx.Config.LogFile,
			ReopenSignal: syscall.SIGHUP,
			Level:        logtypes.InfoLevel,
		})
		if err != nil {
			log.Error(err, "Failed configuring log writer", logging.Fields{
				"log_file": ctx.Config.LogFile,
			})
		}
	}

	return log
}

// logLevel maps the configured level name onto the logger's levels
func logLevel(cfg *configs.Config) logging.Level {
	if cfg.Verbose {
		return logging.DebugLevel
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return logging.DebugLevel
	case "warn":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.InfoLevel
	}
}

// Registry exposes the transform registry so callers can add their own
// transforms before building a pipeline.
func (app *App) Registry() *features.Registry {
	return app.registry
}

// BuildPipeline assembles the configured stages in front of a fresh
// mini-batch k-means estimator.
func (app *App) BuildPipeline() (*pipeline.Pipeline[int], *cluster.MiniBatchKMeans, error) {
	steps, err := app.registry.Steps(app.config.Features.StageSpecs())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build feature stages: %w", err)
	}

	km := cluster.NewMiniBatchKMeans(app.config.Clustering)
	p, err := pipeline.New[int](steps, "kmeans", km, pipeline.WithLogger(app.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to assemble pipeline: %w", err)
	}
	return p, km, nil
}

// Cluster fits the pipeline on clips and assigns each clip a cluster.
func (app *App) Cluster(ctx context.Context, clips []features.Clip) (*Result, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("no clips to cluster")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, km, err := app.BuildPipeline()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	batch := features.Batch(clips)

	// The pipeline cannot be interrupted, so a cancelled run is abandoned
	// and finishes in the background against its own private pipeline.
	type outcome struct {
		labels []int
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		labels, err := p.FitPredict(batch)
		done <- outcome{labels: labels, err: err}
	}()

	var labels []int
	select {
	case <-ctx.Done():
		app.logger.Warn("Clustering abandoned", logging.Fields{
			"clips":   len(clips),
			"elapsed": time.Since(start).String(),
			"reason":  ctx.Err().Error(),
		})
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("clustering failed: %w", out.err)
		}
		labels = out.labels
	}

	result := &Result{
		RunID:        uuid.NewString(),
		Timestamp:    start,
		Duration:     time.Since(start),
		Clips:        len(clips),
		Clusters:     km.Config().K,
		Iterations:   km.Iterations(),
		Inertia:      km.Inertia(),
		ClusterSizes: make(map[int]int),
	}
	for _, step := range p.Steps() {
		result.Stages = append(result.Stages, step.Name)
	}
	if centroids := km.Centroids(); len(centroids) > 0 {
		result.Features = len(centroids[0])
	}
	for i, label := range labels {
		result.ClusterSizes[label]++
		result.Assignments = append(result.Assignments, Assignment{
			Clip:    clips[i].Name,
			Label:   clips[i].Label,
			Cluster: label,
		})
	}
	result.Purity = purity(result.Assignments)
	if app.config.Output.IncludeCentroids {
		result.Centroids = km.Centroids()
	}

	app.logger.Info("Clustering completed", logging.Fields{
		"run_id":     result.RunID,
		"clips":      result.Clips,
		"features":   result.Features,
		"iterations": result.Iterations,
		"inertia":    result.Inertia,
	})

	return result, nil
}

// Run clusters the clips and writes the formatted result.
func (app *App) Run(ctx context.Context, clips []features.Clip) (*Result, error) {
	result, err := app.Cluster(ctx, clips)
	if err != nil {
		return nil, err
	}

	if err := app.outputResults(result); err != nil {
		return nil, fmt.Errorf("failed to output results: %w", err)
	}

	app.collectMetrics(result)
	return result, nil
}

// purity is the share of clips whose cluster's majority label matches
// their own. Unlabeled runs report 0.
func purity(assignments []Assignment) float64 {
	counts := make(map[int]map[string]int)
	labeled := 0
	for _, a := range assignments {
		if a.Label == "" {
			continue
		}
		labeled++
		if counts[a.Cluster] == nil {
			counts[a.Cluster] = make(map[string]int)
		}
		counts[a.Cluster][a.Label]++
	}
	if labeled == 0 {
		return 0
	}

	majority := 0
	for _, byLabel := range counts {
		best := 0
		for _, n := range byLabel {
			best = max(best, n)
		}
		majority += best
	}
	return float64(majority) / float64(labeled)
}

func (app *App) outputResults(result *Result) error {
	outputData := map[string]any{
		"run_id":        result.RunID,
		"timestamp":     result.Timestamp,
		"duration_ms":   result.Duration.Milliseconds(),
		"stages":        strings.Join(result.Stages, " -> "),
		"clips":         result.Clips,
		"features":      result.Features,
		"clusters":      result.Clusters,
		"iterations":    result.Iterations,
		"inertia":       round(result.Inertia, app.config.Output.Precision),
		"cluster_sizes": clusterSizes(result.ClusterSizes),
		"assignments":   result.Assignments,
	}
	if result.Purity > 0 {
		outputData["purity"] = round(result.Purity, app.config.Output.Precision)
	}
	if result.Centroids != nil {
		outputData["centroids"] = result.Centroids
	}

	// Create formatter
	var formatter output.Formatter
	switch app.config.Output.Format {
	case "json":
		formatter = &output.JSONFormatter{}
	case "yaml":
		formatter = &output.YAMLFormatter{}
	case "csv":
		formatter = &output.CSVFormatter{}
	case "table":
		formatter = &output.TableFormatter{}
	default:
		formatter = &output.JSONFormatter{}
	}

	formattedData, err := formatter.Format(outputData, true)
	if err != nil {
		// Centroids of silent clips can carry non-finite values
		if strings.Contains(err.Error(), "unsupported value") {
			formattedData, err = formatter.Format(sanitizeForJSON(outputData), true)
		}
		if err != nil {
			return fmt.Errorf("failed to format output data: %w", err)
		}
	}

	// Write to file or stdout
	if app.config.Output.File != "" {
		return app.writeToFile(formattedData)
	}

	_, err = os.Stdout.Write(formattedData)
	return err
}

// collectMetrics reports run metrics to rootcollector when a log file
// sink is configured.
func (app *App) collectMetrics(result *Result) {
	if app.config.LogFile == "" {
		return
	}

	tags := []string{
		"run:" + result.RunID,
		fmt.Sprintf("clusters:%d", result.Clusters),
	}
	rootcollector.Metric("feature_pipeline.run.duration.milliseconds", result.Duration.Milliseconds(), tags)
	rootcollector.Metric("feature_pipeline.run.clips", int64(result.Clips), tags)
	rootcollector.Metric("feature_pipeline.run.iterations", int64(result.Iterations), tags)
}

// writeToFile writes data to the configured output file
func (app *App) writeToFile(data []byte) error {
	path := app.config.Output.File

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": path,
		"size_bytes":  len(data),
	})

	return nil
}

// clusterSizes keys sizes by cluster id as strings, in id order.
func clusterSizes(sizes map[int]int) map[string]int {
	ids := make([]int, 0, len(sizes))
	for id := range sizes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make(map[string]int, len(ids))
	for _, id := range ids {
		out[fmt.Sprintf("cluster_%d", id)] = sizes[id]
	}
	return out
}

func round(v float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

// sanitizeForJSON recursively replaces infinite and NaN values with 0
func sanitizeForJSON(data any) any {
	switch v := data.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0.0
		}
		return v
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = sanitizeForJSON(val)
		}
		return result
	case []float64:
		result := make([]float64, len(v))
		for i, val := range v {
			if !math.IsInf(val, 0) && !math.IsNaN(val) {
				result[i] = val
			}
		}
		return result
	case [][]float64:
		result := make([][]float64, len(v))
		for i, row := range v {
			result[i] = sanitizeForJSON(row).([]float64)
		}
		return result
	default:
		return sanitizeWithReflection(data)
	}
}

// sanitizeWithReflection walks slices of other element types
func sanitizeWithReflection(data any) any {
	if data == nil {
		return nil
	}

	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return data
	}

	result := make([]any, val.Len())
	for i := 0; i < val.Len(); i++ {
		result[i] = sanitizeForJSON(val.Index(i).Interface())
	}
	return result
}
