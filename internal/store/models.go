package store

import "time"

// Deployment records a bundle that was loaded and put into service.
type Deployment struct {
	ID        uint   `gorm:"primaryKey"`
	Version   string `gorm:"size:128;index"`
	Checksum  string `gorm:"size:64;index"`
	Path      string `gorm:"size:512"`
	Columns   int
	Threshold float64
	Policy    string `gorm:"size:16"`
	Host      string `gorm:"size:255"`
	LoadedAt  time.Time
	CreatedAt time.Time
}

// Incident kinds raised while serving predictions.
const (
	IncidentSchemaMismatch = "schema_mismatch"
	IncidentInference      = "inference"
)

// Incident is an operator-facing alert raised by a failed prediction request.
// It carries no customer data.
type Incident struct {
	ID             string    `gorm:"primaryKey;size:36"`
	Kind           string    `gorm:"size:32;index"`
	Message        string    `gorm:"type:text"`
	RequestID      string    `gorm:"size:36"`
	BundleVersion  string    `gorm:"size:128"`
	BundleChecksum string    `gorm:"size:64;index"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}
