package artifact

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// UnknownIgnore maps unseen categories to an all-zero indicator block.
	UnknownIgnore = "ignore"
	// UnknownError rejects unseen categories with ErrUnknownCategory.
	UnknownError = "error"
)

// CategoricalSpec declares one encoder input and its trained vocabulary.
type CategoricalSpec struct {
	Name       string   `json:"name" yaml:"name"`
	Categories []string `json:"categories" yaml:"categories"`
}

// NumericSpec declares one scaler input with its training statistics.
type NumericSpec struct {
	Name  string  `json:"name" yaml:"name"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Scale float64 `json:"scale" yaml:"scale"`
}

// OneHotEncoder emits one indicator column per trained category, named <feature>_<category>.
type OneHotEncoder struct {
	features      []CategoricalSpec
	lookup        []map[string]int
	offsets       []int
	namesOut      []string
	handleUnknown string
}

// NewOneHotEncoder builds an encoder. An empty policy defaults to UnknownIgnore.
func NewOneHotEncoder(features []CategoricalSpec, handleUnknown string) (*OneHotEncoder, error) {
	policy := strings.ToLower(strings.TrimSpace(handleUnknown))
	if policy == "" {
		policy = UnknownIgnore
	}
	if policy != UnknownIgnore && policy != UnknownError {
		return nil, fmt.Errorf("unsupported handle_unknown %q", handleUnknown)
	}
	if len(features) == 0 {
		return nil, errors.New("no categorical features declared")
	}

	enc := &OneHotEncoder{handleUnknown: policy}
	seen := make(map[string]struct{}, len(features))
	offset := 0
	for _, f := range features {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, errors.New("categorical feature without name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate categorical feature %q", name)
		}
		seen[name] = struct{}{}
		if len(f.Categories) == 0 {
			return nil, fmt.Errorf("feature %q has no categories", name)
		}
		idx := make(map[string]int, len(f.Categories))
		cats := make([]string, 0, len(f.Categories))
		for i, c := range f.Categories {
			if _, dup := idx[c]; dup {
				return nil, fmt.Errorf("feature %q repeats category %q", name, c)
			}
			idx[c] = i
			cats = append(cats, c)
			enc.namesOut = append(enc.namesOut, name+"_"+c)
		}
		enc.features = append(enc.features, CategoricalSpec{Name: name, Categories: cats})
		enc.lookup = append(enc.lookup, idx)
		enc.offsets = append(enc.offsets, offset)
		offset += len(cats)
	}
	return enc, nil
}

// FeatureNamesIn lists the categorical inputs in encoder order.
func (e *OneHotEncoder) FeatureNamesIn() []string {
	out := make([]string, len(e.features))
	for i, f := range e.features {
		out[i] = f.Name
	}
	return out
}

// FeatureNamesOut lists the indicator columns in output order.
func (e *OneHotEncoder) FeatureNamesOut() []string {
	out := make([]string, len(e.namesOut))
	copy(out, e.namesOut)
	return out
}

// Categories returns the trained vocabulary for a feature.
func (e *OneHotEncoder) Categories(name string) []string {
	for _, f := range e.features {
		if f.Name == name {
			out := make([]string, len(f.Categories))
			copy(out, f.Categories)
			return out
		}
	}
	return nil
}

// HandleUnknown reports the unseen-category policy.
func (e *OneHotEncoder) HandleUnknown() string { return e.handleUnknown }

// Transform encodes values given in FeatureNamesIn order.
func (e *OneHotEncoder) Transform(values []string) ([]float64, error) {
	if len(values) != len(e.features) {
		return nil, fmt.Errorf("%w: encoder expects %d values, got %d", ErrSchemaMismatch, len(e.features), len(values))
	}
	out := make([]float64, len(e.namesOut))
	for i, v := range values {
		pos, ok := e.lookup[i][v]
		if !ok {
			if e.handleUnknown == UnknownError {
				return nil, fmt.Errorf("%w: %s=%q", ErrUnknownCategory, e.features[i].Name, v)
			}
			continue
		}
		out[e.offsets[i]+pos] = 1
	}
	return out, nil
}

// StandardScaler applies (x - mean) / scale per field.
type StandardScaler struct {
	features []NumericSpec
}

// NewStandardScaler validates the statistics. A zero scale is treated as 1.
func NewStandardScaler(features []NumericSpec) (*StandardScaler, error) {
	if len(features) == 0 {
		return nil, errors.New("no numeric features declared")
	}
	seen := make(map[string]struct{}, len(features))
	out := make([]NumericSpec, 0, len(features))
	for _, f := range features {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, errors.New("numeric feature without name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate numeric feature %q", name)
		}
		seen[name] = struct{}{}
		if !finite(f.Mean) || !finite(f.Scale) {
			return nil, fmt.Errorf("feature %q has non-finite statistics", name)
		}
		if f.Scale < 0 {
			return nil, fmt.Errorf("feature %q has negative scale", name)
		}
		if f.Scale == 0 {
			f.Scale = 1
		}
		f.Name = name
		out = append(out, f)
	}
	return &StandardScaler{features: out}, nil
}

// FeatureNamesIn lists the numeric inputs in scaler order.
func (s *StandardScaler) FeatureNamesIn() []string {
	out := make([]string, len(s.features))
	for i, f := range s.features {
		out[i] = f.Name
	}
	return out
}

// Transform scales values given in FeatureNamesIn order.
func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.features) {
		return nil, fmt.Errorf("%w: scaler expects %d values, got %d", ErrSchemaMismatch, len(s.features), len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		f := s.features[i]
		out[i] = (v - f.Mean) / f.Scale
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
