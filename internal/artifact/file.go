package artifact

import (
	"fmt"
	"strings"
)

// bundleFile mirrors the on-disk layout shared by the JSON and YAML encodings.
type bundleFile struct {
	Version    string          `json:"version" yaml:"version"`
	Classifier *classifierSpec `json:"classifier" yaml:"classifier"`
	Encoder    *encoderSpec    `json:"encoder" yaml:"encoder"`
	Scaler     *scalerSpec     `json:"scaler" yaml:"scaler"`
	Columns    []string        `json:"columns" yaml:"columns"`
}

type classifierSpec struct {
	Type         string    `json:"type" yaml:"type"`
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	Intercept    float64   `json:"intercept" yaml:"intercept"`
	Threshold    *float64  `json:"threshold" yaml:"threshold"`
}

type encoderSpec struct {
	Type          string            `json:"type" yaml:"type"`
	HandleUnknown string            `json:"handle_unknown" yaml:"handle_unknown"`
	Features      []CategoricalSpec `json:"features" yaml:"features"`
}

type scalerSpec struct {
	Type     string        `json:"type" yaml:"type"`
	Features []NumericSpec `json:"features" yaml:"features"`
}

func (f bundleFile) build() (*Bundle, error) {
	if f.Classifier == nil {
		return nil, fmt.Errorf("%w: classifier missing", ErrArtifactLoad)
	}
	if f.Encoder == nil {
		return nil, fmt.Errorf("%w: encoder missing", ErrArtifactLoad)
	}
	if f.Scaler == nil {
		return nil, fmt.Errorf("%w: scaler missing", ErrArtifactLoad)
	}
	if len(f.Columns) == 0 {
		return nil, fmt.Errorf("%w: columns missing", ErrArtifactLoad)
	}

	if t := normalizeType(f.Classifier.Type); t != "" && t != "logistic_regression" {
		return nil, fmt.Errorf("%w: unsupported classifier type %q", ErrArtifactLoad, f.Classifier.Type)
	}
	threshold := DefaultThreshold
	if f.Classifier.Threshold != nil {
		threshold = *f.Classifier.Threshold
	}
	classifier, err := NewLogisticRegression(f.Classifier.Coefficients, f.Classifier.Intercept, threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: classifier: %w", ErrArtifactLoad, err)
	}

	if t := normalizeType(f.Encoder.Type); t != "" && t != "one_hot" {
		return nil, fmt.Errorf("%w: unsupported encoder type %q", ErrArtifactLoad, f.Encoder.Type)
	}
	encoder, err := NewOneHotEncoder(f.Encoder.Features, f.Encoder.HandleUnknown)
	if err != nil {
		return nil, fmt.Errorf("%w: encoder: %w", ErrArtifactLoad, err)
	}

	if t := normalizeType(f.Scaler.Type); t != "" && t != "standard" {
		return nil, fmt.Errorf("%w: unsupported scaler type %q", ErrArtifactLoad, f.Scaler.Type)
	}
	scaler, err := NewStandardScaler(f.Scaler.Features)
	if err != nil {
		return nil, fmt.Errorf("%w: scaler: %w", ErrArtifactLoad, err)
	}

	return New(classifier, encoder, scaler, f.Columns)
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.ReplaceAll(t, "-", "_")
}
