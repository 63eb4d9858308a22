package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFitted is returned by Predict before any successful Fit.
	ErrNotFitted = errors.New("estimator has not been fitted")

	// ErrFieldNotFound is returned when a sample lacks the adapter's target field.
	ErrFieldNotFound = errors.New("target field not found")
)

// TypeError reports a value whose dynamic type a stage cannot accept
type TypeError struct {
	Stage    string
	Expected string
	Got      any
}

func (e *TypeError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("expected %s, got %T", e.Expected, e.Got)
	}
	return fmt.Sprintf("%s: expected %s, got %T", e.Stage, e.Expected, e.Got)
}

// AssemblyError reports a pipeline that cannot be built from the given steps.
type AssemblyError struct {
	Step   string
	Reason string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("invalid pipeline step %q: %s", e.Step, e.Reason)
}
