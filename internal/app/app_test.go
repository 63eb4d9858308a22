package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/feature-pipeline/configs"
	"github.com/RyanBlaney/feature-pipeline/pkg/features"
	"github.com/RyanBlaney/feature-pipeline/pkg/pipeline"
)

func testConfig() *configs.Config {
	cfg := configs.GetDefaultConfig()
	cfg.Features = configs.FastFeaturesConfig()
	cfg.Clustering.K = 2
	cfg.Clustering.BatchSize = 8
	cfg.Clustering.MaxIter = 50
	cfg.Clustering.Seed = 3
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDatasetYAML(t *testing.T) {
	path := writeFile(t, "clips.yaml", `
sample_rate: 8000
clips:
  - name: raw
    samples: [0, 0.5, 0, -0.5]
  - label: tone
    partials:
      - freq: 440
        amplitude: 0.5
    duration: 0.1
`)

	ds, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, ds.Clips, 2)

	clips, err := ds.ToClips(22050)
	require.NoError(t, err)
	assert.Equal(t, "raw", clips[0].Name)
	assert.Equal(t, []float64{0, 0.5, 0, -0.5}, clips[0].Samples)
	assert.Equal(t, 8000, clips[0].SampleRate)
	assert.Equal(t, "clip-001", clips[1].Name)
	assert.Equal(t, "tone", clips[1].Label)
	assert.Len(t, clips[1].Samples, 800)
}

func TestLoadDatasetJSON(t *testing.T) {
	path := writeFile(t, "clips.json", `{"clips": [{"name": "a", "sample_rate": 16000, "samples": [1, 2]}]}`)

	ds, err := LoadDataset(path)
	require.NoError(t, err)

	clips, err := ds.ToClips(22050)
	require.NoError(t, err)
	assert.Equal(t, 16000, clips[0].SampleRate)
}

func TestLoadDatasetErrors(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadDataset(writeFile(t, "bad.json", `{"clips": [`))
	assert.Error(t, err)

	_, err = (&Dataset{}).ToClips(8000)
	assert.Error(t, err)

	_, err = (&Dataset{Clips: []ClipSpec{{Name: "empty"}}}).ToClips(8000)
	assert.ErrorContains(t, err, "empty")
}

func TestAppClustersDemoDataset(t *testing.T) {
	app, err := NewApp(&Context{Config: testConfig()})
	require.NoError(t, err)

	clips, err := DemoDataset(8000, 4, 0.25, 1).ToClips(8000)
	require.NoError(t, err)
	require.Len(t, clips, 8)

	result, err := app.Cluster(context.Background(), clips)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []string{"melspectrogram", "log_amplitude", "flatten", "stack"}, result.Stages)
	assert.Equal(t, 8, result.Clips)
	assert.Equal(t, 32*(1+2000/256), result.Features)
	assert.Len(t, result.Assignments, 8)
	assert.InDelta(t, 1.0, result.Purity, 1e-9)
	assert.Len(t, result.ClusterSizes, 2)
	assert.Nil(t, result.Centroids)
}

func TestAppClustersAtClipSampleRate(t *testing.T) {
	cfg := testConfig()
	cfg.Features.ClipLength = 3000
	app, err := NewApp(&Context{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Features.SampleRate)

	// the dataset's own rate wins over the configured one
	clips, err := DemoDataset(16000, 4, 0.25, 1).ToClips(cfg.Features.SampleRate)
	require.NoError(t, err)
	require.Equal(t, 16000, clips[0].SampleRate)

	result, err := app.Cluster(context.Background(), clips)
	require.NoError(t, err)
	assert.Equal(t, []string{"fix_length", "melspectrogram", "log_amplitude", "flatten", "stack"}, result.Stages)
	assert.Equal(t, 32*(1+3000/256), result.Features)
	assert.InDelta(t, 1.0, result.Purity, 1e-9)
}

func TestAppClusterErrors(t *testing.T) {
	app, err := NewApp(&Context{Config: testConfig()})
	require.NoError(t, err)

	_, err = app.Cluster(context.Background(), nil)
	assert.Error(t, err)

	clips, err := DemoDataset(8000, 1, 0.1, 1).ToClips(8000)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = app.Cluster(ctx, clips)
	assert.ErrorIs(t, err, context.Canceled)

	// one clip per class cannot feed three clusters
	app.config.Clustering.K = 3
	_, err = app.Cluster(context.Background(), clips)
	assert.ErrorContains(t, err, "clustering failed")
}

func TestAppClusterStopsWaitingOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Features.Stages = []features.StageSpec{{Name: "wait", Transform: "wait"}}
	app, err := NewApp(&Context{Config: cfg})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	app.Registry().Register("wait", features.Entry{
		Transform: pipeline.TransformFunc(func(batch any, _ pipeline.Params) (any, error) {
			close(started)
			<-release
			return [][]float64{{0}, {1}}, nil
		}),
		Iterate: false,
	})

	clips, err := DemoDataset(8000, 1, 0.1, 1).ToClips(8000)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err = app.Cluster(ctx, clips)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	_, err := NewApp(&Context{Config: cfg, OutputFormat: "xml"})
	assert.Error(t, err)
}

type levelLogger struct {
	*logging.NoOpLogger
	level logging.Level
}

func (l *levelLogger) SetLevel(level logging.Level) {
	l.level = level
}

func TestNewAppAppliesLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    logging.Level
	}{
		{"debug", false, logging.DebugLevel},
		{"info", false, logging.InfoLevel},
		{"warn", false, logging.WarnLevel},
		{"error", false, logging.ErrorLevel},
		{"error", true, logging.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := testConfig()
			cfg.LogLevel = tt.level
			log := &levelLogger{NoOpLogger: &logging.NoOpLogger{}, level: logging.FatalLevel}

			app, err := NewApp(&Context{Config: cfg, Verbose: tt.verbose, Logger: log})
			require.NoError(t, err)
			assert.Equal(t, tt.want, log.level)
			assert.Same(t, log, app.logger)
		})
	}
}

func TestAppRunWritesJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results", "run.json")
	cfg := testConfig()
	cfg.Output.IncludeCentroids = true

	app, err := NewApp(&Context{Config: cfg, OutputFormat: "json", OutputFile: out})
	require.NoError(t, err)

	clips, err := DemoDataset(8000, 2, 0.25, 1).ToClips(8000)
	require.NoError(t, err)

	result, err := app.Run(context.Background(), clips)
	require.NoError(t, err)
	assert.Len(t, result.Centroids, 2)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.RunID, decoded["run_id"])
	assert.Contains(t, decoded, "cluster_sizes")
	assert.Contains(t, decoded, "centroids")
}

func TestPurity(t *testing.T) {
	assert.Zero(t, purity([]Assignment{{Clip: "a", Cluster: 0}}))
	assert.InDelta(t, 0.75, purity([]Assignment{
		{Label: "x", Cluster: 0},
		{Label: "x", Cluster: 0},
		{Label: "y", Cluster: 0},
		{Label: "y", Cluster: 1},
	}), 1e-12)
}

func TestSanitizeForJSON(t *testing.T) {
	inf := 1.0 / zero()
	got := sanitizeForJSON(map[string]any{
		"a": inf,
		"b": [][]float64{{1, inf}},
		"c": []any{inf, "x"},
	}).(map[string]any)

	assert.Equal(t, 0.0, got["a"])
	assert.Equal(t, [][]float64{{1, 0}}, got["b"])
	assert.Equal(t, []any{0.0, "x"}, got["c"])
}

func zero() float64 { return 0 }
