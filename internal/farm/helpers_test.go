package farm

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prite36/farm-monitor/internal/models"
)

type memRepo struct {
	mu         sync.Mutex
	plants     []models.Plant
	events     []models.EventEntry
	plantSaves int
	eventSaves int
	failSave   error
}

func (m *memRepo) LoadPlants(ctx context.Context) ([]models.Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.plants), nil
}

func (m *memRepo) SavePlants(ctx context.Context, plants []models.Plant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plantSaves++
	if m.failSave != nil {
		return m.failSave
	}
	m.plants = slices.Clone(plants)
	return nil
}

func (m *memRepo) LoadEvents(ctx context.Context) ([]models.EventEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events), nil
}

func (m *memRepo) SaveEvents(ctx context.Context, entries []models.EventEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventSaves++
	if m.failSave != nil {
		return m.failSave
	}
	m.events = slices.Clone(entries)
	return nil
}

func (m *memRepo) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plantSaves + m.eventSaves
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var epoch = time.Date(2025, 12, 13, 9, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *memRepo, *fakeClock) {
	t.Helper()
	repo := &memRepo{}
	clock := &fakeClock{now: epoch}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	reg, err := Open(context.Background(), repo, repo, opts...)
	require.NoError(t, err)
	return reg, repo, clock
}
