package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	// ErrArtifactLoad is returned when a bundle cannot be read or is incomplete.
	ErrArtifactLoad = errors.New("artifact load failed")
	// ErrSchemaMismatch signals a disagreement between the bundle contracts and a record.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrUnknownCategory is returned by encoders configured to reject unseen values.
	ErrUnknownCategory = errors.New("unknown category")
)

// Classifier scores a fixed-width feature vector laid out in bundle column order.
type Classifier interface {
	Width() int
	Threshold() float64
	PredictProba(features []float64) (float64, error)
	Predict(features []float64) (bool, error)
}

// Encoder maps categorical fields to a fixed-width indicator vector.
type Encoder interface {
	FeatureNamesIn() []string
	FeatureNamesOut() []string
	Transform(values []string) ([]float64, error)
}

// Scaler normalizes numeric fields. Output columns keep the input names.
type Scaler interface {
	FeatureNamesIn() []string
	Transform(values []float64) ([]float64, error)
}

// Bundle is the immutable set of trained components used for inference.
type Bundle struct {
	version    string
	checksum   string
	classifier Classifier
	encoder    Encoder
	scaler     Scaler
	columns    []string
}

// New validates the component contracts and assembles a bundle.
func New(classifier Classifier, encoder Encoder, scaler Scaler, columns []string) (*Bundle, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier missing", ErrArtifactLoad)
	}
	if encoder == nil {
		return nil, fmt.Errorf("%w: encoder missing", ErrArtifactLoad)
	}
	if scaler == nil {
		return nil, fmt.Errorf("%w: scaler missing", ErrArtifactLoad)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: columns missing", ErrArtifactLoad)
	}
	if err := checkContracts(classifier, encoder, scaler, columns); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactLoad, err)
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Bundle{
		classifier: classifier,
		encoder:    encoder,
		scaler:     scaler,
		columns:    cols,
	}, nil
}

func checkContracts(classifier Classifier, encoder Encoder, scaler Scaler, columns []string) error {
	index := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if strings.TrimSpace(col) == "" {
			return errors.New("blank column name")
		}
		if _, dup := index[col]; dup {
			return fmt.Errorf("duplicate column %q", col)
		}
		index[col] = struct{}{}
	}
	if classifier.Width() != len(columns) {
		return fmt.Errorf("%w: classifier expects %d features, bundle lists %d columns", ErrSchemaMismatch, classifier.Width(), len(columns))
	}

	categorical := make(map[string]struct{})
	for _, name := range encoder.FeatureNamesIn() {
		categorical[name] = struct{}{}
	}
	for _, name := range scaler.FeatureNamesIn() {
		if _, clash := categorical[name]; clash {
			return fmt.Errorf("%w: field %q is both categorical and numeric", ErrSchemaMismatch, name)
		}
		if _, ok := index[name]; !ok {
			return fmt.Errorf("%w: scaler column %q absent from expected columns", ErrSchemaMismatch, name)
		}
	}

	produced := make(map[string]string)
	for _, name := range scaler.FeatureNamesIn() {
		produced[name] = "scaler"
	}
	for _, name := range encoder.FeatureNamesOut() {
		if owner, clash := produced[name]; clash {
			return fmt.Errorf("%w: encoder column %q collides with a %s column", ErrSchemaMismatch, name, owner)
		}
		produced[name] = "encoder"
	}

	var dropped []string
	for _, name := range encoder.FeatureNamesOut() {
		if _, ok := index[name]; !ok {
			dropped = append(dropped, name)
		}
	}
	if len(dropped) > 0 {
		logrus.WithField("columns", dropped).Warn("encoder columns not used by classifier will be dropped")
	}
	return nil
}

// Load reads a JSON or YAML bundle file and validates it.
func Load(path string) (*Bundle, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: bundle path is empty", ErrArtifactLoad)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read bundle: %w", ErrArtifactLoad, err)
	}

	var file bundleFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode bundle: %w", ErrArtifactLoad, err)
	}

	bundle, err := file.build()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	bundle.checksum = hex.EncodeToString(sum[:])
	bundle.version = strings.TrimSpace(file.Version)

	logrus.WithFields(logrus.Fields{
		"path":     path,
		"version":  bundle.version,
		"columns":  len(bundle.columns),
		"checksum": bundle.checksum[:12],
	}).Info("loaded churn model bundle")
	return bundle, nil
}

// Classifier returns the trained model.
func (b *Bundle) Classifier() Classifier { return b.classifier }

// Encoder returns the categorical transform.
func (b *Bundle) Encoder() Encoder { return b.encoder }

// Scaler returns the numeric transform.
func (b *Bundle) Scaler() Scaler { return b.scaler }

// Columns returns a copy of the training-time column order.
func (b *Bundle) Columns() []string {
	out := make([]string, len(b.columns))
	copy(out, b.columns)
	return out
}

// Version is the free-form label stored in the bundle file.
func (b *Bundle) Version() string { return b.version }

// Checksum is the hex SHA-256 of the bundle file, empty for in-memory bundles.
func (b *Bundle) Checksum() string { return b.checksum }

// UnknownPolicy reports how the encoder treats unseen categories.
func (b *Bundle) UnknownPolicy() string {
	if enc, ok := b.encoder.(*OneHotEncoder); ok {
		return enc.HandleUnknown()
	}
	return ""
}
