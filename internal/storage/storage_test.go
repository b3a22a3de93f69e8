package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/farm"
	"github.com/prite36/farm-monitor/internal/models"
)

type store interface {
	farm.PlantRepository
	farm.EventRepository
}

var watered = time.Date(2025, 12, 8, 6, 30, 0, 0, time.UTC)

func testStores(t *testing.T) map[string]store {
	t.Helper()

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "farm.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	return map[string]store{
		"file":   fs,
		"sqlite": NewDBStore(db),
	}
}

func TestStoresStartEmpty(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			plants, err := s.LoadPlants(context.Background())
			require.NoError(t, err)
			assert.Empty(t, plants)

			events, err := s.LoadEvents(context.Background())
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestStoresRoundTrip(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			plants := []models.Plant{
				{ID: "1", Field: "North 1", Species: "Tomato", WaterCycleDays: 7, Status: models.StatusOK, LastWatered: watered},
				{ID: "2", Field: "South 2", Species: "Wheat", WaterCycleDays: 10, Status: models.StatusProblem, LastWatered: watered, Ordinal: 1},
			}
			events := []models.EventEntry{
				{Seq: 1, PlantID: "1", Timestamp: watered, Type: models.EventAdded, Details: models.Details{"field": "North 1"}},
				{Seq: 2, PlantID: "1", Timestamp: watered.Add(time.Hour), Type: models.EventWatered, Details: models.Details{"by": "manual"}},
			}
			require.NoError(t, s.SavePlants(ctx, plants))
			require.NoError(t, s.SaveEvents(ctx, events))

			plants[0].Status = models.StatusProblem
			events = append(events, models.EventEntry{Seq: 3, PlantID: "1", Timestamp: watered.Add(2 * time.Hour), Type: models.EventProblemMarked})
			require.NoError(t, s.SavePlants(ctx, plants))
			require.NoError(t, s.SaveEvents(ctx, events))

			gotPlants, err := s.LoadPlants(ctx)
			require.NoError(t, err)
			require.Len(t, gotPlants, 2)
			assert.Equal(t, "1", gotPlants[0].ID)
			assert.Equal(t, models.StatusProblem, gotPlants[0].Status)
			assert.Equal(t, 10, gotPlants[1].WaterCycleDays)
			assert.True(t, watered.Equal(gotPlants[1].LastWatered), "last watered restored as an instant")

			gotEvents, err := s.LoadEvents(ctx)
			require.NoError(t, err)
			require.Len(t, gotEvents, 3)
			assert.Equal(t, models.EventWatered, gotEvents[1].Type)
			assert.Equal(t, "manual", gotEvents[1].Details["by"])
			assert.True(t, watered.Add(time.Hour).Equal(gotEvents[1].Timestamp))
		})
	}
}

func TestRegistryOverFileStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	reg, err := farm.Open(ctx, fs, fs)
	require.NoError(t, err)
	p, err := reg.Add(ctx, "North 1", "Tomato", 3)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, farm.KeyPlants+".json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, farm.KeyHistory+".json"))
	assert.NoError(t, err)

	reopened, err := farm.Open(ctx, fs, fs)
	require.NoError(t, err)
	got, ok := reopened.Plant(p.ID)
	require.True(t, ok)
	assert.True(t, p.LastWatered.Equal(got.LastWatered))
	assert.Len(t, reopened.History(p.ID), 1)
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plants.json"), []byte("{"), 0o644))

	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = fs.LoadPlants(context.Background())
	assert.Error(t, err)
}

func TestOpenDBSQLite(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "farm.db")}}

	db, err := OpenDB(cfg)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&models.Plant{}))
	assert.True(t, db.Migrator().HasTable(&models.EventEntry{}))
}

func TestOpenDBUnknownDriver(t *testing.T) {
	_, err := OpenDB(&config.Config{Database: config.DatabaseConfig{Driver: "oracle"}})
	assert.Error(t, err)
}
