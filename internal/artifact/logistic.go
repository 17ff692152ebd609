package artifact

import (
	"errors"
	"fmt"
	"math"
)

// DefaultThreshold is used when a bundle does not declare one.
const DefaultThreshold = 0.5

// LogisticRegression is a binary linear classifier over the bundle columns.
type LogisticRegression struct {
	coefficients []float64
	intercept    float64
	threshold    float64
}

// NewLogisticRegression validates the weights and a threshold in [0,1].
func NewLogisticRegression(coefficients []float64, intercept, threshold float64) (*LogisticRegression, error) {
	if len(coefficients) == 0 {
		return nil, errors.New("coefficients missing")
	}
	for i, c := range coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, errors.New("intercept is not finite")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0,1]", threshold)
	}
	weights := make([]float64, len(coefficients))
	copy(weights, coefficients)
	return &LogisticRegression{coefficients: weights, intercept: intercept, threshold: threshold}, nil
}

// Width is the number of features the model was trained on.
func (m *LogisticRegression) Width() int { return len(m.coefficients) }

// Threshold is the probability at or above which the churn label is true.
func (m *LogisticRegression) Threshold() float64 { return m.threshold }

// PredictProba returns the probability mass on the churn class.
func (m *LogisticRegression) PredictProba(features []float64) (float64, error) {
	if len(features) != len(m.coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.coefficients), len(features))
	}
	z := m.intercept
	for i, w := range m.coefficients {
		z += w * features[i]
	}
	return sigmoid(z), nil
}

// Predict returns the churn label for the supplied features.
func (m *LogisticRegression) Predict(features []float64) (bool, error) {
	p, err := m.PredictProba(features)
	if err != nil {
		return false, err
	}
	return p >= m.threshold, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
