package api

import (
	"fmt"
	"time"

	"churn-predictor/backend/internal/store"
)

// PredictionResponse is returned for a single scored customer.
type PredictionResponse struct {
	RequestID          string  `json:"request_id"`
	ChurnProbability   float64 `json:"churn_probability"`
	ProbabilityDisplay string  `json:"probability_display"`
	ChurnLabel         bool    `json:"churn_label"`
	ChurnStatus        string  `json:"churn_status"`
	Threshold          float64 `json:"threshold"`
	RiskBand           string  `json:"risk_band"`
	Recommendation     string  `json:"recommendation"`
	AdviceSource       string  `json:"advice_source"`
	TenureMonths       int     `json:"customer_tenure_in_months"`
	BundleVersion      string  `json:"bundle_version"`
	ProcessingTimeMs   int64   `json:"processing_time_ms"`
}

// ConfigResponse describes the bundle currently serving predictions.
type ConfigResponse struct {
	BundleVersion  string   `json:"bundle_version"`
	BundleChecksum string   `json:"bundle_checksum"`
	BundlePath     string   `json:"bundle_path"`
	Threshold      float64  `json:"threshold"`
	UnknownPolicy  string   `json:"unknown_category_policy"`
	Columns        []string `json:"columns"`
	Categorical    []string `json:"categorical_fields"`
	Numeric        []string `json:"numeric_fields"`
	AdvisorEnabled bool     `json:"ai_advisor_enabled"`
}

// IncidentDTO is the API representation of a stored incident.
type IncidentDTO struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Message        string    `json:"message"`
	RequestID      string    `json:"request_id"`
	BundleVersion  string    `json:"bundle_version"`
	BundleChecksum string    `json:"bundle_checksum"`
	CreatedAt      time.Time `json:"created_at"`
}

// IncidentsResponse is the paginated incident listing.
type IncidentsResponse struct {
	Items []IncidentDTO `json:"items"`
	Total int64         `json:"total"`
}

// DeploymentDTO is the API representation of a bundle load.
type DeploymentDTO struct {
	ID        uint      `json:"id"`
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
	Path      string    `json:"path"`
	Columns   int       `json:"columns"`
	Threshold float64   `json:"threshold"`
	Policy    string    `json:"unknown_category_policy"`
	Host      string    `json:"host"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// IncidentFromModel converts a store.Incident into the DTO representation.
func IncidentFromModel(i store.Incident) IncidentDTO {
	return IncidentDTO{
		ID:             i.ID,
		Kind:           i.Kind,
		Message:        i.Message,
		RequestID:      i.RequestID,
		BundleVersion:  i.BundleVersion,
		BundleChecksum: i.BundleChecksum,
		CreatedAt:      i.CreatedAt,
	}
}

// DeploymentFromModel converts a store.Deployment into the DTO representation.
func DeploymentFromModel(d store.Deployment) DeploymentDTO {
	return DeploymentDTO{
		ID:        d.ID,
		Version:   d.Version,
		Checksum:  d.Checksum,
		Path:      d.Path,
		Columns:   d.Columns,
		Threshold: d.Threshold,
		Policy:    d.Policy,
		Host:      d.Host,
		LoadedAt:  d.LoadedAt,
	}
}

func churnStatus(label bool) string {
	if label {
		return "Yes"
	}
	return "No"
}

func percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}
