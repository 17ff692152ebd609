package scoring

import (
	"errors"
	"fmt"
	"math"

	"churn-predictor/backend/internal/artifact"
)

// ErrInference wraps unexpected failures raised by the classifier.
var ErrInference = errors.New("inference failed")

// Record exposes the named fields the transforms read.
type Record interface {
	Categorical(name string) (string, bool)
	Numeric(name string) (float64, bool)
}

// Result is the churn outcome for one record.
type Result struct {
	ChurnProbability float64 `json:"churn_probability"`
	ChurnLabel       bool    `json:"churn_label"`
	Threshold        float64 `json:"threshold"`
}

// Column is one named value of the intermediate feature row.
type Column struct {
	Name  string
	Value float64
}

// Score runs encode, scale, reconcile and classify for a single record.
func Score(bundle *artifact.Bundle, record Record) (Result, error) {
	if bundle == nil {
		return Result{}, fmt.Errorf("%w: bundle not loaded", ErrInference)
	}
	row, err := BuildRow(bundle, record)
	if err != nil {
		return Result{}, err
	}
	vector, err := Reconcile(row, bundle.Columns(), bundle.Scaler().FeatureNamesIn())
	if err != nil {
		return Result{}, err
	}
	return Classify(bundle.Classifier(), vector)
}

// BuildRow encodes and scales the record, returning scaled numeric columns
// followed by encoded categorical columns.
func BuildRow(bundle *artifact.Bundle, record Record) ([]Column, error) {
	encoder := bundle.Encoder()
	scaler := bundle.Scaler()

	catNames := encoder.FeatureNamesIn()
	catValues := make([]string, len(catNames))
	for i, name := range catNames {
		v, ok := record.Categorical(name)
		if !ok {
			return nil, fmt.Errorf("%w: record missing categorical field %q", artifact.ErrSchemaMismatch, name)
		}
		catValues[i] = v
	}

	numNames := scaler.FeatureNamesIn()
	numValues := make([]float64, len(numNames))
	for i, name := range numNames {
		v, ok := record.Numeric(name)
		if !ok {
			return nil, fmt.Errorf("%w: record missing numeric field %q", artifact.ErrSchemaMismatch, name)
		}
		numValues[i] = v
	}

	encoded, err := encoder.Transform(catValues)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	scaled, err := scaler.Transform(numValues)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}

	encodedNames := encoder.FeatureNamesOut()
	if len(encoded) != len(encodedNames) {
		return nil, fmt.Errorf("%w: encoder produced %d values for %d columns", artifact.ErrSchemaMismatch, len(encoded), len(encodedNames))
	}
	if len(scaled) != len(numNames) {
		return nil, fmt.Errorf("%w: scaler produced %d values for %d columns", artifact.ErrSchemaMismatch, len(scaled), len(numNames))
	}

	row := make([]Column, 0, len(scaled)+len(encoded))
	for i, name := range numNames {
		row = append(row, Column{Name: name, Value: scaled[i]})
	}
	for i, name := range encodedNames {
		row = append(row, Column{Name: name, Value: encoded[i]})
	}
	return row, nil
}

// Reconcile lays the row out in expected column order. Expected columns the
// row lacks are zero-filled unless they are numeric, which is a schema
// mismatch. Row columns not expected are dropped.
func Reconcile(row []Column, expected []string, numeric []string) ([]float64, error) {
	values := make(map[string]float64, len(row))
	for _, col := range row {
		if _, dup := values[col.Name]; dup {
			return nil, fmt.Errorf("%w: column %q produced twice", artifact.ErrSchemaMismatch, col.Name)
		}
		values[col.Name] = col.Value
	}
	numericSet := make(map[string]struct{}, len(numeric))
	for _, name := range numeric {
		numericSet[name] = struct{}{}
	}

	vector := make([]float64, len(expected))
	for i, name := range expected {
		v, ok := values[name]
		if !ok {
			if _, isNumeric := numericSet[name]; isNumeric {
				return nil, fmt.Errorf("%w: numeric column %q missing from row", artifact.ErrSchemaMismatch, name)
			}
			continue
		}
		vector[i] = v
	}
	return vector, nil
}

// Classify invokes the classifier and checks the probability it returns.
func Classify(classifier artifact.Classifier, vector []float64) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = fmt.Errorf("%w: classifier panic: %v", ErrInference, r)
		}
	}()

	p, err := classifier.PredictProba(vector)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return Result{}, fmt.Errorf("%w: probability %v outside [0,1]", ErrInference, p)
	}
	label, err := classifier.Predict(vector)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return Result{
		ChurnProbability: p,
		ChurnLabel:       label,
		Threshold:        classifier.Threshold(),
	}, nil
}
