package features

// Clip is one audio sample with its metadata. It implements
// pipeline.Fielder so a stage can target its samples directly.
type Clip struct {
	Name       string    `json:"name" yaml:"name"`
	SampleRate int       `json:"sample_rate" yaml:"sample_rate"`
	Samples    []float64 `json:"samples" yaml:"samples"`
	Label      string    `json:"label,omitempty" yaml:"label,omitempty"`
}

// Field names exposed by Clip
const (
	FieldName       = "name"
	FieldSampleRate = "sample_rate"
	FieldSamples    = "samples"
	FieldLabel      = "label"
)

// Field returns the named attribute of the clip.
func (c Clip) Field(name string) (any, bool) {
	switch name {
	case FieldName:
		return c.Name, true
	case FieldSampleRate:
		return c.SampleRate, true
	case FieldSamples:
		return c.Samples, true
	case FieldLabel:
		return c.Label, true
	default:
		return nil, false
	}
}

// Duration returns the clip length in seconds
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Batch wraps clips as a pipeline input batch.
func Batch(clips []Clip) []any {
	out := make([]any, len(clips))
	for i, c := range clips {
		out[i] = c
	}
	return out
}
