package advice

import (
	"context"
	"errors"

	"churn-predictor/backend/internal/features"
	"churn-predictor/backend/internal/scoring"
)

// Risk bands derived from the churn probability.
const (
	BandLow    = "low"
	BandMedium = "medium"
	BandHigh   = "high"
)

const (
	mediumFrom = 0.3
	highFrom   = 0.6
)

// ErrDisabled is returned by advisors that cannot produce advice.
var ErrDisabled = errors.New("advisor disabled")

// Advisor turns a prediction into retention guidance.
type Advisor interface {
	Enabled() bool
	Advise(ctx context.Context, input Input) (Advice, error)
}

// Input carries the customer and the prediction to advise on.
type Input struct {
	Record features.CustomerRecord
	Result scoring.Result
}

// Advice is the recommendation shown next to a prediction.
type Advice struct {
	Band           string `json:"risk_band"`
	Recommendation string `json:"recommendation"`
	Source         string `json:"advice_source"`
}

// Band maps a probability to a risk band.
func Band(probability float64) string {
	switch {
	case probability >= highFrom:
		return BandHigh
	case probability >= mediumFrom:
		return BandMedium
	default:
		return BandLow
	}
}
