package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/feature-pipeline/pkg/pipeline"
)

// Config holds mini-batch k-means hyperparameters
type Config struct {
	K                int     `mapstructure:"n_clusters" json:"n_clusters"`
	BatchSize        int     `mapstructure:"batch_size" json:"batch_size"`
	MaxIter          int     `mapstructure:"max_iter" json:"max_iter"`
	Tolerance        float64 `mapstructure:"tol" json:"tol"`                               // stop when the summed squared center shift of a batch falls to this; 0 disables
	MaxNoImprovement int     `mapstructure:"max_no_improvement" json:"max_no_improvement"` // batches without a smoothed-inertia improvement before stopping; 0 disables
	Seed             uint64  `mapstructure:"seed" json:"seed"`
}

// DefaultConfig returns 8 clusters, batches of 1024 and 100 iterations
func DefaultConfig() Config {
	return Config{
		K:                8,
		BatchSize:        1024,
		MaxIter:          100,
		MaxNoImprovement: 10,
	}
}

// Validate checks the hyperparameters
func (c Config) Validate() error {
	if c.K <= 0 {
		return fmt.Errorf("n_clusters must be positive, got %d", c.K)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MaxIter <= 0 {
		return fmt.Errorf("max_iter must be positive, got %d", c.MaxIter)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tol must be non-negative, got %g", c.Tolerance)
	}
	if c.MaxNoImprovement < 0 {
		return fmt.Errorf("max_no_improvement must be non-negative, got %d", c.MaxNoImprovement)
	}
	return nil
}

// ErrEmptyData is returned when Fit or Predict receives no samples.
var ErrEmptyData = errors.New("input data cannot be empty")

// ErrNilEstimator is returned by Fit and Predict on a nil *MiniBatchKMeans.
var ErrNilEstimator = errors.New("nil mini-batch k-means estimator")

// DimensionError reports a sample with the wrong number of features
type DimensionError struct {
	Index int
	Want  int
	Got   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("sample %d has %d features, expected %d", e.Index, e.Got, e.Want)
}

// MiniBatchKMeans clusters feature vectors with k-means++ seeding and
// per-center learning-rate mini-batch updates. It satisfies
// pipeline.Estimator[int].
type MiniBatchKMeans struct {
	config    Config
	centroids [][]float64
	counts    []float64
	inertia   float64
	nIter     int
	fitted    bool
	logger    logging.Logger
}

var _ pipeline.Estimator[int] = (*MiniBatchKMeans)(nil)

// NewMiniBatchKMeans creates an unfitted clusterer
func NewMiniBatchKMeans(config Config) *MiniBatchKMeans {
	return &MiniBatchKMeans{
		config: config,
		logger: logging.NewDefaultLogger(),
	}
}

// Config returns the hyperparameters
func (m *MiniBatchKMeans) Config() Config {
	return m.config
}

// Fit trains on a [][]float64 matrix, one row per sample. Any
// previously learned centroids are discarded first.
func (m *MiniBatchKMeans) Fit(data any) error {
	if m == nil {
		return ErrNilEstimator
	}
	m.reset()

	if err := m.config.Validate(); err != nil {
		return err
	}
	X, err := asMatrix(data, 0)
	if err != nil {
		return err
	}
	n := len(X)
	if n < m.config.K {
		return fmt.Errorf("number of samples (%d) is less than n_clusters (%d)", n, m.config.K)
	}

	rng := rand.New(rand.NewPCG(m.config.Seed, m.config.Seed^0x9e3779b97f4a7c15))

	initSize := min(n, max(3*m.config.BatchSize, m.config.K))
	initIdx := rng.Perm(n)[:initSize]
	initRows := make([][]float64, initSize)
	for i, idx := range initIdx {
		initRows[i] = X[idx]
	}
	centroids := initCenters(initRows, m.config.K, rng)
	counts := make([]float64, m.config.K)

	batchSize := min(m.config.BatchSize, n)
	alpha := math.Min(1, float64(batchSize)/float64(n))
	ewa, best := math.NaN(), math.Inf(1)
	noImprovement := 0
	previous := make([][]float64, m.config.K)

	iter := 0
	for iter < m.config.MaxIter {
		iter++

		for k := range centroids {
			previous[k] = append(previous[k][:0], centroids[k]...)
		}

		batchInertia := 0.0
		for range batchSize {
			x := X[rng.IntN(n)]
			k, d2 := nearest(centroids, x)
			batchInertia += d2

			counts[k]++
			eta := 1 / counts[k]
			floats.Scale(1-eta, centroids[k])
			floats.AddScaled(centroids[k], eta, x)
		}
		batchInertia /= float64(batchSize)

		shift := 0.0
		for k := range centroids {
			d := floats.Distance(centroids[k], previous[k], 2)
			shift += d * d
		}

		if math.IsNaN(ewa) {
			ewa = batchInertia
		} else {
			ewa = ewa*(1-alpha) + batchInertia*alpha
		}

		if m.config.Tolerance > 0 && shift <= m.config.Tolerance {
			m.logger.Debug("Mini-batch k-means converged", logging.Fields{
				"iteration": iter,
				"shift":     shift,
			})
			break
		}

		if ewa < best {
			best = ewa
			noImprovement = 0
		} else {
			noImprovement++
		}
		if m.config.MaxNoImprovement > 0 && noImprovement >= m.config.MaxNoImprovement {
			m.logger.Debug("Mini-batch k-means stopped without improvement", logging.Fields{
				"iteration": iter,
				"ewa":       ewa,
			})
			break
		}
	}

	inertia := 0.0
	for _, x := range X {
		_, d2 := nearest(centroids, x)
		inertia += d2
	}

	m.centroids = centroids
	m.counts = counts
	m.inertia = inertia
	m.nIter = iter
	m.fitted = true

	m.logger.Debug("Mini-batch k-means fitted", logging.Fields{
		"n_samples":  n,
		"n_features": len(X[0]),
		"n_clusters": m.config.K,
		"iterations": iter,
		"inertia":    inertia,
	})
	return nil
}

// Predict assigns each row of a [][]float64 matrix to its nearest centroid.
func (m *MiniBatchKMeans) Predict(data any) ([]int, error) {
	if m == nil {
		return nil, ErrNilEstimator
	}
	if !m.fitted {
		return nil, pipeline.ErrNotFitted
	}
	X, err := asMatrix(data, len(m.centroids[0]))
	if err != nil {
		return nil, err
	}

	labels := make([]int, len(X))
	for i, x := range X {
		labels[i], _ = nearest(m.centroids, x)
	}
	return labels, nil
}

// Centroids returns a copy of the learned cluster centers
func (m *MiniBatchKMeans) Centroids() [][]float64 {
	out := make([][]float64, len(m.centroids))
	for k, c := range m.centroids {
		out[k] = append([]float64(nil), c...)
	}
	return out
}

// Counts returns how many samples updated each center during training
func (m *MiniBatchKMeans) Counts() []float64 {
	return append([]float64(nil), m.counts...)
}

// Inertia is the sum of squared distances of the training samples to
// their nearest centroid.
func (m *MiniBatchKMeans) Inertia() float64 {
	return m.inertia
}

// Iterations returns the number of mini-batches used by the last Fit
func (m *MiniBatchKMeans) Iterations() int {
	return m.nIter
}

// IsFitted reports whether the model has been trained
func (m *MiniBatchKMeans) IsFitted() bool {
	return m.fitted
}

func (m *MiniBatchKMeans) reset() {
	m.centroids = nil
	m.counts = nil
	m.inertia = 0
	m.nIter = 0
	m.fitted = false
}

// asMatrix validates a sample matrix. dim 0 takes the width of the first row.
func asMatrix(data any, dim int) ([][]float64, error) {
	X, ok := data.([][]float64)
	if !ok {
		return nil, &pipeline.TypeError{Stage: "kmeans", Expected: "[][]float64", Got: data}
	}
	if len(X) == 0 {
		return nil, ErrEmptyData
	}
	if dim == 0 {
		dim = len(X[0])
		if dim == 0 {
			return nil, errors.New("samples must have at least one feature")
		}
	}
	for i, row := range X {
		if len(row) != dim {
			return nil, &DimensionError{Index: i, Want: dim, Got: len(row)}
		}
	}
	return X, nil
}

// initCenters picks k seeds with k-means++ (D^2 weighting).
func initCenters(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), X[rng.IntN(n)]...))

	distSq := make([]float64, n)
	for i, x := range X {
		_, distSq[i] = nearest(centroids, x)
	}

	for len(centroids) < k {
		total := floats.Sum(distSq)

		next := rng.IntN(n)
		if total > 0 {
			r := rng.Float64() * total
			cumulative := 0.0
			for i, d2 := range distSq {
				cumulative += d2
				if cumulative >= r {
					next = i
					break
				}
			}
		}

		c := append([]float64(nil), X[next]...)
		centroids = append(centroids, c)
		for i, x := range X {
			d := floats.Distance(x, c, 2)
			distSq[i] = math.Min(distSq[i], d*d)
		}
	}
	return centroids
}

func nearest(centroids [][]float64, x []float64) (int, float64) {
	best, bestSq := 0, math.MaxFloat64
	for k, c := range centroids {
		d := floats.Distance(x, c, 2)
		if d*d < bestSq {
			best, bestSq = k, d*d
		}
	}
	return best, bestSq
}
