package pipeline

import "fmt"

// Transform is a single feature-extraction operation. Implementations
// validate their own options; the adapter never inspects them.
type Transform interface {
	Transform(sample any, params Params) (any, error)
}

// TransformFunc lets an ordinary function act as a Transform.
type TransformFunc func(sample any, params Params) (any, error)

// Transform calls f(sample, params).
func (f TransformFunc) Transform(sample any, params Params) (any, error) {
	return f(sample, params)
}

// Fielder is implemented by heterogeneous samples that expose named
// attributes, so an adapter can pick one as the transform input.
type Fielder interface {
	Field(name string) (any, bool)
}

// Stage is a stateless, non-terminal pipeline step.
type Stage interface {
	Apply(input any) (any, error)
}

// Adapter wraps a Transform and its fixed options as a pipeline Stage.
// An Adapter is immutable once built; Configure returns a new one.
type Adapter struct {
	transform   Transform
	params      Params
	iterate     bool
	targetField string
}

// AdapterOption configures an Adapter at construction
type AdapterOption func(*Adapter)

// WithIterate selects per-element (true, the default) or whole-batch application.
func WithIterate(iterate bool) AdapterOption {
	return func(a *Adapter) {
		a.iterate = iterate
	}
}

// WithTargetField makes the adapter pass sample.Field(name) to the
// transform instead of the sample itself. Only used in iterate mode.
func WithTargetField(name string) AdapterOption {
	return func(a *Adapter) {
		a.targetField = name
	}
}

// NewAdapter binds t to a private copy of params.
func NewAdapter(t Transform, params Params, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		transform: t,
		params:    params.Clone(),
		iterate:   true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configure returns a copy of the adapter with overrides merged over its
// fixed options. Unknown keys are kept; the transform decides validity.
func (a *Adapter) Configure(overrides Params) *Adapter {
	return &Adapter{
		transform:   a.transform,
		params:      a.params.Merge(overrides),
		iterate:     a.iterate,
		targetField: a.targetField,
	}
}

// Params returns a copy of the adapter's fixed options.
func (a *Adapter) Params() Params {
	return a.params.Clone()
}

// Iterate reports whether the transform runs once per element
func (a *Adapter) Iterate() bool {
	return a.iterate
}

// TargetField returns the sample field fed to the transform, if any.
func (a *Adapter) TargetField() string {
	return a.targetField
}

// Apply runs the transform over input. In iterate mode input must be a
// []any and the result is a new []any of equal length; otherwise the
// transform is invoked once on input. Transform errors are returned as is.
// Each call sees its own copy of the fixed options.
func (a *Adapter) Apply(input any) (any, error) {
	if !a.iterate {
		return a.transform.Transform(input, a.params.Clone())
	}

	batch, ok := input.([]any)
	if !ok {
		return nil, &TypeError{Expected: "[]any batch", Got: input}
	}

	out := make([]any, len(batch))
	for i, sample := range batch {
		arg := sample
		if a.targetField != "" {
			fielder, ok := sample.(Fielder)
			if !ok {
				return nil, fmt.Errorf("sample %d (%T) has no field %q: %w", i, sample, a.targetField, ErrFieldNotFound)
			}
			if arg, ok = fielder.Field(a.targetField); !ok {
				return nil, fmt.Errorf("sample %d has no field %q: %w", i, a.targetField, ErrFieldNotFound)
			}
		}

		result, err := a.transform.Transform(arg, a.params.Clone())
		if err != nil {
			return nil, err
		}
		out[i] = result
	}
	return out, nil
}
