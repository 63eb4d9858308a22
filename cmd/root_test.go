package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/feature-pipeline/configs"
)

func TestBindFlagsMapsNestedKeys(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addPipelineFlags(cmd, configs.GetDefaultConfig())
	require.NoError(t, cmd.Flags().Set("clusters", "5"))

	v := viper.New()
	v.Set("features.n_mels", 40)
	require.NoError(t, bindFlags(cmd, v))

	assert.Equal(t, 5, v.GetInt("clustering.n_clusters"))

	// an unset flag takes the configured value
	nMels, err := cmd.Flags().GetInt("n-mels")
	require.NoError(t, err)
	assert.Equal(t, 40, nMels)
	assert.Equal(t, 40, v.GetInt("features.n_mels"))
}

func TestBindFlagsEnvironment(t *testing.T) {
	t.Setenv("FEATURE_PIPELINE_CLUSTERING_SEED", "99")

	cmd := &cobra.Command{Use: "test"}
	addPipelineFlags(cmd, configs.GetDefaultConfig())

	v := viper.New()
	require.NoError(t, bindFlags(cmd, v))
	assert.Equal(t, uint64(99), v.GetUint64("clustering.seed"))
}

func demoFlags(t *testing.T, v *viper.Viper) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "demo"}
	addPipelineFlags(cmd, demoDefaults())
	configs.SetDefaults(v)
	require.NoError(t, bindFlags(cmd, v))
	return cmd
}

func TestBindFlagsCommandDefaults(t *testing.T) {
	v := viper.New()
	cmd := demoFlags(t, v)

	cfg, err := configs.LoadConfigFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Clustering.K)
	assert.Equal(t, 16, cfg.Clustering.BatchSize)
	assert.Equal(t, 8000, cfg.Features.SampleRate)
	assert.Equal(t, 32, cfg.Features.NMels)
	// keys without a flag keep the global defaults
	assert.Equal(t, 10, cfg.Clustering.MaxNoImprovement)
	assert.False(t, cmd.Flags().Changed("clusters"))
}

func TestBindFlagsConfigBeatsCommandDefaults(t *testing.T) {
	t.Setenv("FEATURE_PIPELINE_FEATURES_N_MELS", "48")

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("clustering:\n  n_clusters: 5\n")))
	cmd := demoFlags(t, v)

	cfg, err := configs.LoadConfigFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Clustering.K)
	assert.Equal(t, 48, cfg.Features.NMels)
	assert.Equal(t, 16, cfg.Clustering.BatchSize)

	clusters, err := cmd.Flags().GetInt("clusters")
	require.NoError(t, err)
	assert.Equal(t, 5, clusters)
}

func TestPerformanceTimer(t *testing.T) {
	timer := NewPerformanceTimer()
	timer.StartEvent("step")
	time.Sleep(time.Millisecond)
	timer.EndEvent("step")

	assert.Positive(t, timer.GetDuration("step"))
	assert.Zero(t, timer.GetDuration("missing"))
	assert.GreaterOrEqual(t, timer.GetTotalDuration(), timer.GetDuration("step"))

	// ending an event that never started is a no-op
	timer.EndEvent("missing")
	assert.Zero(t, timer.GetDuration("missing"))
}
