package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/spf13/cast"
)

// Params maps option names to values. Stages treat a Params value as
// read-only; Merge and Clone always return fresh maps.
type Params map[string]any

// ParamError reports an option a transform rejected
type ParamError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid parameter %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("invalid parameter %q=%v: %s", e.Key, e.Value, e.Reason)
}

// Clone returns a shallow copy of p. A nil receiver yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}

// Merge returns p overlaid with overrides; overrides win on collision.
func (p Params) Merge(overrides Params) Params {
	out := p.Clone()
	maps.Copy(out, overrides)
	return out
}

// Keys returns the option names in sorted order
func (p Params) Keys() []string {
	keys := slices.Collect(maps.Keys(p))
	sort.Strings(keys)
	return keys
}

// Check rejects any key not listed in allowed.
func (p Params) Check(allowed ...string) error {
	for _, key := range p.Keys() {
		if !slices.Contains(allowed, key) {
			return &ParamError{Key: key, Reason: "unknown option"}
		}
	}
	return nil
}

// Float reads key as a float64, returning def when it is absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, &ParamError{Key: key, Value: v, Reason: "expected a number"}
	}
	return f, nil
}

// Int reads key as an int, returning def when it is absent.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	if f, isFloat := v.(float64); isFloat && f != float64(int(f)) {
		return 0, &ParamError{Key: key, Value: v, Reason: "expected an integer"}
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, &ParamError{Key: key, Value: v, Reason: "expected an integer"}
	}
	return i, nil
}

// Bool reads key as a bool, returning def when it is absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, &ParamError{Key: key, Value: v, Reason: "expected a boolean"}
	}
	return b, nil
}

// String reads key as a string, returning def when it is absent.
func (p Params) String(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", &ParamError{Key: key, Value: v, Reason: "expected a string"}
	}
	return s, nil
}
