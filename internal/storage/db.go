package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/models"
)

const batchSize = 200

// DBStore persists plants and history in two tables through GORM.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// OpenDB connects to the configured database, retrying with exponential backoff, and migrates the schema.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.Path)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var db *gorm.DB
	err := backoff.Retry(func() error {
		var err error
		db, err = gorm.Open(dialector, &gorm.Config{})
		if err != nil {
			log.Printf("[WARN] Failed to connect to database: %v", err)
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, 4))
	if err != nil {
		return nil, fmt.Errorf("could not connect to database after retries: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	log.Println("Auto-migrating database schema...")
	if err := db.AutoMigrate(&models.Plant{}, &models.EventEntry{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}
	return nil
}

func (s *DBStore) LoadPlants(ctx context.Context) ([]models.Plant, error) {
	var plants []models.Plant
	if err := s.db.WithContext(ctx).Order("ordinal, id").Find(&plants).Error; err != nil {
		return nil, fmt.Errorf("failed to query plants: %w", err)
	}
	return plants, nil
}

// SavePlants upserts every plant. Plants are never deleted.
func (s *DBStore) SavePlants(ctx context.Context, plants []models.Plant) error {
	if len(plants) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(plants, batchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert plants: %w", err)
	}
	return nil
}

func (s *DBStore) LoadEvents(ctx context.Context) ([]models.EventEntry, error) {
	var entries []models.EventEntry
	if err := s.db.WithContext(ctx).Order("seq").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entries, nil
}

// SaveEvents inserts entries that are not stored yet. Existing rows are left untouched.
func (s *DBStore) SaveEvents(ctx context.Context, entries []models.EventEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(entries, batchSize).Error
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}
