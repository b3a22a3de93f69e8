package farm

import (
	"context"

	"github.com/prite36/farm-monitor/internal/models"
)

// Logical storage keys owned by the registry and the event log.
const (
	KeyPlants  = "plants"
	KeyHistory = "history"
)

// PlantRepository persists the whole plant set. LoadPlants returns an empty slice when nothing was stored yet.
type PlantRepository interface {
	LoadPlants(ctx context.Context) ([]models.Plant, error)
	SavePlants(ctx context.Context, plants []models.Plant) error
}

// EventRepository persists the event history. Entries are never rewritten once saved.
type EventRepository interface {
	LoadEvents(ctx context.Context) ([]models.EventEntry, error)
	SaveEvents(ctx context.Context, entries []models.EventEntry) error
}

// EventSink observes events after they have been committed.
type EventSink interface {
	Observe(ctx context.Context, entry models.EventEntry)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, entry models.EventEntry)

func (f SinkFunc) Observe(ctx context.Context, entry models.EventEntry) {
	f(ctx, entry)
}
