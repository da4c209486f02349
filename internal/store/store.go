// Package store provides the optional run ledger: a SQLite database
// recording the outcome of every entity backup, using GORM.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sentinel errors for ledger operations.
var (
	ErrNilOutcome = errors.New("outcome cannot be nil")
)

// Outcome is one recorded entity backup.
type Outcome struct {
	ID uint `gorm:"primaryKey"`

	Policy string `gorm:"not null;index:idx_policy"`
	Entity string `gorm:"not null;index:idx_entity"`
	State  string `gorm:"not null"`
	Error  string

	RecordedAt time.Time `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the ledger interface the pipeline records through.
type Store interface {
	Close() error
	RecordOutcome(*Outcome) error
	ListByPolicy(policy string) ([]*Outcome, error)
	ListSince(t time.Time) ([]*Outcome, error)
}

// DB wraps gorm.DB with ledger operations.
type DB struct {
	db *gorm.DB
}

// Open opens (and migrates) the ledger database at path.
func Open(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Outcome{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run ledger schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close run ledger: %w", err)
	}
	return nil
}

// RecordOutcome appends one entity outcome.
func (d *DB) RecordOutcome(outcome *Outcome) error {
	if outcome == nil {
		return ErrNilOutcome
	}
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now().UTC()
	}
	if err := d.db.Create(outcome).Error; err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// ListByPolicy returns all outcomes recorded for a policy.
func (d *DB) ListByPolicy(policy string) ([]*Outcome, error) {
	var outcomes []*Outcome
	if err := d.db.Where("policy = ?", policy).Order("recorded_at").Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("failed to list outcomes for %s: %w", policy, err)
	}
	return outcomes, nil
}

// ListSince returns all outcomes recorded at or after t.
func (d *DB) ListSince(t time.Time) ([]*Outcome, error) {
	var outcomes []*Outcome
	if err := d.db.Where("recorded_at >= ?", t).Order("recorded_at").Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return outcomes, nil
}

// Record implements the pipeline's Recorder interface.
func (d *DB) Record(policy, entityName, state string, backupErr error) {
	outcome := &Outcome{
		Policy:     policy,
		Entity:     entityName,
		State:      state,
		RecordedAt: time.Now().UTC(),
	}
	if backupErr != nil {
		outcome.State = "error"
		outcome.Error = backupErr.Error()
	}
	// The ledger is advisory; a failed write must never fail a backup.
	_ = d.RecordOutcome(outcome)
}
