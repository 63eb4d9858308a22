package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransform counts its invocations and multiplies by "k".
type recordingTransform struct {
	calls  int
	params []Params
}

func (r *recordingTransform) Transform(sample any, params Params) (any, error) {
	r.calls++
	r.params = append(r.params, params)
	k, err := params.Float("k", 1)
	if err != nil {
		return nil, err
	}
	switch v := sample.(type) {
	case float64:
		return v * k, nil
	case []any:
		return len(v), nil
	default:
		return nil, &TypeError{Expected: "float64", Got: sample}
	}
}

type record map[string]any

func (r record) Field(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

func TestAdapterIterateAppliesPerElement(t *testing.T) {
	rt := &recordingTransform{}
	a := NewAdapter(rt, Params{"k": 3})

	out, err := a.Apply([]any{1.0, 2.0, 3.0, 4.0})
	require.NoError(t, err)

	got, ok := out.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{3.0, 6.0, 9.0, 12.0}, got)
	assert.Equal(t, 4, rt.calls)
}

func TestAdapterBatchModeCallsOnce(t *testing.T) {
	rt := &recordingTransform{}
	a := NewAdapter(rt, nil, WithIterate(false))

	out, err := a.Apply([]any{1.0, 2.0, 3.0})
	require.NoError(t, err)
	assert.Equal(t, 3, out)
	assert.Equal(t, 1, rt.calls)
}

func TestAdapterIterateEmptyBatch(t *testing.T) {
	rt := &recordingTransform{}
	out, err := NewAdapter(rt, nil).Apply([]any{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, out)
	assert.Zero(t, rt.calls)
}

func TestAdapterIterateRejectsNonBatch(t *testing.T) {
	_, err := NewAdapter(&recordingTransform{}, nil).Apply(1.0)

	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, 1.0, typeErr.Got)
}

func TestAdapterConfigureEmptyIsIdentity(t *testing.T) {
	base := NewAdapter(&recordingTransform{}, Params{"k": 2})
	same := base.Configure(Params{})
	viaNil := base.Configure(nil)

	input := []any{1.0, 5.0}
	want, err := base.Apply(input)
	require.NoError(t, err)

	for _, a := range []*Adapter{same, viaNil} {
		got, err := a.Apply(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, base.Params(), a.Params())
		assert.Equal(t, base.Iterate(), a.Iterate())
	}
}

func TestAdapterConfigureOverridesWin(t *testing.T) {
	rt := &recordingTransform{}
	base := NewAdapter(rt, Params{"k": 1, "other": "x"})
	tuned := base.Configure(Params{"k": 2})

	out, err := tuned.Apply([]any{10.0})
	require.NoError(t, err)
	assert.Equal(t, []any{20.0}, out)
	assert.Equal(t, 2, rt.params[0]["k"])
	assert.Equal(t, "x", rt.params[0]["other"])

	// the original keeps its own options
	assert.Equal(t, Params{"k": 1, "other": "x"}, base.Params())
}

func TestAdapterConfigureKeepsUnknownKeys(t *testing.T) {
	a := NewAdapter(&recordingTransform{}, nil).Configure(Params{"bogus": true})
	assert.Equal(t, Params{"bogus": true}, a.Params())
}

func TestAdapterParamsAreIsolated(t *testing.T) {
	params := Params{"k": 1}
	a := NewAdapter(&recordingTransform{}, params)

	params["k"] = 100
	exported := a.Params()
	exported["k"] = 50

	out, err := a.Apply([]any{2.0})
	require.NoError(t, err)
	assert.Equal(t, []any{2.0}, out)
}

func TestAdapterTransformCannotMutateParams(t *testing.T) {
	var seen []any
	mutating := TransformFunc(func(sample any, p Params) (any, error) {
		seen = append(seen, p["k"])
		p["k"] = 99
		p["extra"] = true
		return sample, nil
	})

	for _, iterate := range []bool{true, false} {
		seen = nil
		a := NewAdapter(mutating, Params{"k": 1}, WithIterate(iterate))

		_, err := a.Apply([]any{1.0, 2.0})
		require.NoError(t, err)
		_, err = a.Apply([]any{3.0})
		require.NoError(t, err)

		assert.Equal(t, Params{"k": 1}, a.Params())
		for _, k := range seen {
			assert.Equal(t, 1, k)
		}
	}
}

func TestAdapterTargetField(t *testing.T) {
	rt := &recordingTransform{}
	a := NewAdapter(rt, Params{"k": 10}, WithTargetField("value"))

	out, err := a.Apply([]any{
		record{"value": 1.0, "name": "a"},
		record{"value": 2.0, "name": "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{10.0, 20.0}, out)
	assert.Equal(t, "value", a.TargetField())
}

func TestAdapterTargetFieldMissing(t *testing.T) {
	a := NewAdapter(&recordingTransform{}, nil, WithTargetField("value"))

	_, err := a.Apply([]any{record{"value": 1.0}, record{"name": "b"}})
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = a.Apply([]any{1.0})
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestAdapterPropagatesTransformError(t *testing.T) {
	boom := errors.New("boom")
	a := NewAdapter(TransformFunc(func(sample any, _ Params) (any, error) {
		if sample.(float64) < 0 {
			return nil, boom
		}
		return sample, nil
	}), nil)

	_, err := a.Apply([]any{1.0, -1.0})
	assert.Same(t, boom, err)
}

func TestAdapterInvalidParamSurfacesAtCall(t *testing.T) {
	a := NewAdapter(&recordingTransform{}, Params{"k": "not-a-number"})

	_, err := a.Apply([]any{1.0})
	var paramErr *ParamError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "k", paramErr.Key)
}
