package pipeline

import (
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Estimator is the trainable terminal stage of a pipeline. Fit must
// discard any previously learned state.
type Estimator[L any] interface {
	Fit(data any) error
	Predict(data any) ([]L, error)
}

// State is the training state of a pipeline
type State int

const (
	Unfitted State = iota
	Fitted
)

func (s State) String() string {
	switch s {
	case Fitted:
		return "fitted"
	default:
		return "unfitted"
	}
}

// Step is a named non-terminal stage.
type Step struct {
	Name  string
	Stage Stage
}

// Pipeline routes a batch through its stages in order and hands the
// result to a terminal estimator. It does no internal locking: Fit and
// Predict on the same instance must be serialized by the caller.
type Pipeline[L any] struct {
	steps         []Step
	estimatorName string
	estimator     Estimator[L]
	state         State
	logger        logging.Logger
}

// Option configures a Pipeline
type Option func(*options)

type options struct {
	logger logging.Logger
}

// WithLogger sets the logger used for per-stage debug output.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New assembles a pipeline. Stage input/output compatibility is not
// checked here; a mismatch surfaces from the stage that rejects its input.
// Only an untyped nil estimator is rejected; an interface holding a nil
// pointer gets through, so such estimators should guard their own receiver.
func New[L any](steps []Step, estimatorName string, estimator Estimator[L], opts ...Option) (*Pipeline[L], error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewDefaultLogger()
	}

	seen := make(map[string]bool, len(steps)+1)
	for _, step := range steps {
		if step.Name == "" {
			return nil, &AssemblyError{Step: step.Name, Reason: "empty name"}
		}
		if seen[step.Name] {
			return nil, &AssemblyError{Step: step.Name, Reason: "duplicate name"}
		}
		if step.Stage == nil {
			return nil, &AssemblyError{Step: step.Name, Reason: "nil stage"}
		}
		seen[step.Name] = true
	}
	if estimatorName == "" {
		return nil, &AssemblyError{Step: estimatorName, Reason: "empty estimator name"}
	}
	if seen[estimatorName] {
		return nil, &AssemblyError{Step: estimatorName, Reason: "duplicate name"}
	}
	if estimator == nil {
		return nil, &AssemblyError{Step: estimatorName, Reason: "nil estimator"}
	}

	return &Pipeline[L]{
		steps:         append([]Step(nil), steps...),
		estimatorName: estimatorName,
		estimator:     estimator,
		state:         Unfitted,
		logger:        o.logger,
	}, nil
}

// Fit runs inputs through every stage and retrains the estimator from
// scratch on the result. A stage failure leaves the estimator and the
// pipeline state untouched; an estimator failure resets the state to
// Unfitted.
func (p *Pipeline[L]) Fit(inputs any) (*Pipeline[L], error) {
	working, err := p.Transform(inputs)
	if err != nil {
		return p, err
	}

	start := time.Now()
	if err := p.estimator.Fit(working); err != nil {
		p.state = Unfitted
		p.logger.Error(err, "Estimator fit failed", logging.Fields{
			"estimator": p.estimatorName,
		})
		return p, err
	}
	p.state = Fitted

	p.logger.Debug("Estimator fitted", logging.Fields{
		"estimator":   p.estimatorName,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return p, nil
}

// Predict runs inputs through every stage and returns the estimator's
// labels. It fails with ErrNotFitted before any successful Fit.
func (p *Pipeline[L]) Predict(inputs any) ([]L, error) {
	if p.state != Fitted {
		return nil, ErrNotFitted
	}

	working, err := p.Transform(inputs)
	if err != nil {
		return nil, err
	}
	return p.estimator.Predict(working)
}

// FitPredict fits on inputs and predicts the same inputs.
func (p *Pipeline[L]) FitPredict(inputs any) ([]L, error) {
	if _, err := p.Fit(inputs); err != nil {
		return nil, err
	}
	return p.Predict(inputs)
}

// Transform runs inputs through the non-terminal stages only.
func (p *Pipeline[L]) Transform(inputs any) (any, error) {
	working := inputs
	for _, step := range p.steps {
		start := time.Now()

		out, err := step.Stage.Apply(working)
		if err != nil {
			p.logger.Debug("Stage failed", logging.Fields{
				"stage": step.Name,
				"error": err.Error(),
			})
			return nil, err
		}
		working = out

		p.logger.Debug("Stage applied", logging.Fields{
			"stage":       step.Name,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
	return working, nil
}

// State reports whether the pipeline has been fitted.
func (p *Pipeline[L]) State() State {
	return p.state
}

// Steps returns the non-terminal steps in order.
func (p *Pipeline[L]) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Step looks up a non-terminal stage by name.
func (p *Pipeline[L]) Step(name string) (Stage, bool) {
	for _, step := range p.steps {
		if step.Name == name {
			return step.Stage, true
		}
	}
	return nil, false
}

// Estimator returns the terminal estimator and its name
func (p *Pipeline[L]) Estimator() (string, Estimator[L]) {
	return p.estimatorName, p.estimator
}
