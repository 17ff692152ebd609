package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Deployment{}, &Incident{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordDeployment stores a bundle load.
func (d *Database) RecordDeployment(dep *Deployment) error {
	if dep == nil {
		return errors.New("deployment is nil")
	}
	if dep.LoadedAt.IsZero() {
		dep.LoadedAt = time.Now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(dep).Error
}

// ListDeployments returns the most recent bundle loads first.
func (d *Database) ListDeployments(limit int) ([]Deployment, error) {
	query := d.gorm.Model(&Deployment{}).Order("loaded_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []Deployment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RecordIncident stores an incident, assigning an ID when missing.
func (d *Database) RecordIncident(incident *Incident) error {
	if incident == nil {
		return errors.New("incident is nil")
	}
	incident.Kind = strings.TrimSpace(incident.Kind)
	if incident.Kind == "" {
		return errors.New("incident kind required")
	}
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(incident).Error
}

// IncidentQuery filters incident listings.
type IncidentQuery struct {
	Kind   string
	Offset int
	Limit  int
}

// ListIncidents returns incidents newest first with the total matching count.
func (d *Database) ListIncidents(opts IncidentQuery) ([]Incident, int64, error) {
	base := d.gorm.Model(&Incident{})
	if kind := strings.TrimSpace(opts.Kind); kind != "" {
		base = base.Where("kind = ?", kind)
	}
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := base.Session(&gorm.Session{}).Order("created_at DESC")
	if opts.Limit > 0 {
		query = query.Offset(opts.Offset).Limit(opts.Limit)
	}
	var rows []Incident
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_incidents_kind_created ON incidents(kind, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_deployments_loaded_at ON deployments(loaded_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
