package farm

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prite36/farm-monitor/internal/models"
)

// DefaultImportCycleDays is the watering cycle given to plants created by an import.
const DefaultImportCycleDays = 3

// Clock returns the current instant.
type Clock func() time.Time

// Registry owns the tracked plants and the event log. Every mutator runs to
// completion under one lock, appends its events and then saves both the plant
// set and the history before returning.
type Registry struct {
	mu     sync.Mutex
	plants []*models.Plant
	index  map[string]*models.Plant
	log    *EventLog

	plantRepo PlantRepository
	eventRepo EventRepository

	sinksMu sync.RWMutex
	sinks   []EventSink

	now             Clock
	ids             IDGenerator
	criticalAfter   int
	importCycleDays int
}

type Option func(*Registry)

func WithClock(c Clock) Option {
	return func(r *Registry) { r.now = c }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) { r.ids = g }
}

func WithCriticalAfter(days int) Option {
	return func(r *Registry) { r.criticalAfter = days }
}

func WithImportCycleDays(days int) Option {
	return func(r *Registry) {
		if days >= 1 {
			r.importCycleDays = days
		}
	}
}

func WithSinks(sinks ...EventSink) Option {
	return func(r *Registry) { r.sinks = append(r.sinks, sinks...) }
}

// Open loads the stored plants and history and returns a ready registry.
func Open(ctx context.Context, plants PlantRepository, events EventRepository, opts ...Option) (*Registry, error) {
	r := &Registry{
		index:           make(map[string]*models.Plant),
		plantRepo:       plants,
		eventRepo:       events,
		now:             time.Now,
		ids:             NewSequenceIDs(),
		criticalAfter:   DefaultCriticalAfterDays,
		importCycleDays: DefaultImportCycleDays,
	}
	for _, opt := range opts {
		opt(r)
	}

	stored, err := plants.LoadPlants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", KeyPlants, err)
	}
	history, err := events.LoadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", KeyHistory, err)
	}

	seeder, _ := r.ids.(interface{ Observe(id string) })
	for i := range stored {
		p := stored[i]
		r.plants = append(r.plants, &p)
		r.index[p.ID] = &p
		if seeder != nil {
			seeder.Observe(p.ID)
		}
	}
	r.log = NewEventLog(r.now, history...)

	log.Printf("[INFO] Loaded %d plants and %d history entries", len(r.plants), r.log.Len())
	return r, nil
}

// AddSink registers an observer for committed events.
func (r *Registry) AddSink(s EventSink) {
	r.sinksMu.Lock()
	r.sinks = append(r.sinks, s)
	r.sinksMu.Unlock()
}

// Log exposes the event history.
func (r *Registry) Log() *EventLog {
	return r.log
}

// Add creates a plant that was watered just now.
func (r *Registry) Add(ctx context.Context, field, species string, cycleDays int) (models.Plant, error) {
	field, species, err := normalizeNames(field, species)
	if err != nil {
		return models.Plant{}, err
	}
	cycleDays = coerceCycle(cycleDays)

	var created models.Plant
	err = r.mutate(ctx, func(now time.Time) []models.EventEntry {
		p := r.insert(field, species, cycleDays, models.StatusOK, now)
		created = *p
		return []models.EventEntry{r.log.Append(p.ID, models.EventAdded, models.Details{
			"field":            field,
			"species":          species,
			"water_cycle_days": strconv.Itoa(cycleDays),
		})}
	})
	return created, err
}

// Water marks a plant as watered now and clears any problem. Unknown ids are ignored.
func (r *Registry) Water(ctx context.Context, id string) (bool, error) {
	found := false
	err := r.mutate(ctx, func(now time.Time) []models.EventEntry {
		p, ok := r.index[id]
		if !ok {
			return nil
		}
		found = true
		return []models.EventEntry{r.water(p, now, models.Details{"by": "manual"})}
	})
	return found, err
}

// AutoWaterOverdue waters every overdue plant. Plants with a problem status are left alone.
func (r *Registry) AutoWaterOverdue(ctx context.Context) (int, error) {
	var entries int
	err := r.mutate(ctx, func(now time.Time) []models.EventEntry {
		var out []models.EventEntry
		for _, p := range r.plants {
			if Health(*p, now) != models.HealthOverdue {
				continue
			}
			out = append(out, r.water(p, now, models.Details{"by": "auto"}))
		}
		entries = len(out)
		return out
	})
	return entries, err
}

// Edit replaces the editable attributes of a plant. Nothing is recorded or saved when no value changes.
func (r *Registry) Edit(ctx context.Context, id, field, species string, cycleDays int) (bool, error) {
	field, species, err := normalizeNames(field, species)
	if err != nil {
		return false, err
	}
	cycleDays = coerceCycle(cycleDays)

	found := false
	err = r.mutate(ctx, func(now time.Time) []models.EventEntry {
		p, ok := r.index[id]
		if !ok {
			return nil
		}
		found = true

		diff := models.Details{}
		if p.Field != field {
			diff["field_from"], diff["field_to"] = p.Field, field
		}
		if p.Species != species {
			diff["species_from"], diff["species_to"] = p.Species, species
		}
		if p.WaterCycleDays != cycleDays {
			diff["water_cycle_days_from"] = strconv.Itoa(p.WaterCycleDays)
			diff["water_cycle_days_to"] = strconv.Itoa(cycleDays)
		}
		if len(diff) == 0 {
			return nil
		}

		p.Field, p.Species, p.WaterCycleDays = field, species, cycleDays
		return []models.EventEntry{r.log.Append(p.ID, models.EventEdited, diff)}
	})
	return found, err
}

// ToggleProblem flips a plant between ok and problem without touching its watering time.
func (r *Registry) ToggleProblem(ctx context.Context, id string) (bool, error) {
	found := false
	err := r.mutate(ctx, func(now time.Time) []models.EventEntry {
		p, ok := r.index[id]
		if !ok {
			return nil
		}
		found = true
		return []models.EventEntry{r.toggle(p)}
	})
	return found, err
}

// SetProblem toggles the plant only when its status differs from the requested one.
func (r *Registry) SetProblem(ctx context.Context, id string, problem bool) (bool, error) {
	found := false
	err := r.mutate(ctx, func(now time.Time) []models.EventEntry {
		p, ok := r.index[id]
		if !ok {
			return nil
		}
		found = true
		if (p.Status == models.StatusProblem) == problem {
			return nil
		}
		return []models.EventEntry{r.toggle(p)}
	})
	return found, err
}

// Plant returns a copy of the plant with the given id.
func (r *Registry) Plant(id string) (models.Plant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.index[id]
	if !ok {
		return models.Plant{}, false
	}
	return *p, true
}

// Plants returns a copy of every plant in creation order.
func (r *Registry) Plants() []models.Plant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// View returns the plant with its derived status.
func (r *Registry) View(id string) (models.PlantView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.index[id]
	if !ok {
		return models.PlantView{}, false
	}
	return Assess(*p, r.now(), r.criticalAfter), true
}

// Views derives the status of every plant at the current instant.
func (r *Registry) Views() []models.PlantView {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	views := make([]models.PlantView, 0, len(r.plants))
	for _, p := range r.plants {
		views = append(views, Assess(*p, now, r.criticalAfter))
	}
	return views
}

func (r *Registry) Dashboard() models.Summary {
	return Summarize(r.Views())
}

// History returns the events recorded for a plant, newest first.
func (r *Registry) History(id string) []models.EventEntry {
	return r.log.Query(id)
}

// mutate runs fn under the registry lock. When fn records events the state is
// saved before the lock is released, and the events are handed to the sinks afterwards.
func (r *Registry) mutate(ctx context.Context, fn func(now time.Time) []models.EventEntry) error {
	r.mu.Lock()
	entries := fn(r.now())
	var err error
	if len(entries) > 0 {
		err = r.persist(ctx)
	}
	r.mu.Unlock()

	if err != nil {
		log.Printf("[ERROR] In-memory state is ahead of storage: %v", err)
	}
	r.dispatch(ctx, entries)
	return err
}

func (r *Registry) persist(ctx context.Context) error {
	if err := r.plantRepo.SavePlants(ctx, r.snapshot()); err != nil {
		return fmt.Errorf("failed to save %s: %w", KeyPlants, err)
	}
	if err := r.eventRepo.SaveEvents(ctx, r.log.Entries()); err != nil {
		return fmt.Errorf("failed to save %s: %w", KeyHistory, err)
	}
	return nil
}

func (r *Registry) dispatch(ctx context.Context, entries []models.EventEntry) {
	if len(entries) == 0 {
		return
	}
	r.sinksMu.RLock()
	sinks := r.sinks
	r.sinksMu.RUnlock()
	for _, e := range entries {
		for _, s := range sinks {
			s.Observe(ctx, e)
		}
	}
}

func (r *Registry) snapshot() []models.Plant {
	out := make([]models.Plant, len(r.plants))
	for i, p := range r.plants {
		out[i] = *p
	}
	return out
}

func (r *Registry) insert(field, species string, cycleDays int, status models.PlantStatus, lastWatered time.Time) *models.Plant {
	p := &models.Plant{
		ID:             r.ids.NewID(),
		Field:          field,
		Species:        species,
		WaterCycleDays: cycleDays,
		Status:         status,
		LastWatered:    lastWatered,
		Ordinal:        len(r.plants),
	}
	r.plants = append(r.plants, p)
	r.index[p.ID] = p
	return p
}

func (r *Registry) water(p *models.Plant, at time.Time, details models.Details) models.EventEntry {
	p.LastWatered = at
	p.Status = models.StatusOK
	return r.log.Append(p.ID, models.EventWatered, details)
}

func (r *Registry) toggle(p *models.Plant) models.EventEntry {
	if p.Status == models.StatusProblem {
		p.Status = models.StatusOK
		return r.log.Append(p.ID, models.EventProblemCleared, nil)
	}
	p.Status = models.StatusProblem
	return r.log.Append(p.ID, models.EventProblemMarked, nil)
}

func (r *Registry) findPair(field, species string) *models.Plant {
	for _, p := range r.plants {
		if p.Field == field && p.Species == species {
			return p
		}
	}
	return nil
}

func normalizeNames(field, species string) (string, string, error) {
	field = strings.TrimSpace(field)
	species = strings.TrimSpace(species)
	if field == "" {
		return "", "", fmt.Errorf("%w: field is required", ErrValidation)
	}
	if species == "" {
		return "", "", fmt.Errorf("%w: species is required", ErrValidation)
	}
	return field, species, nil
}

func coerceCycle(days int) int {
	if days < 1 {
		return 1
	}
	return days
}

// ParseCycleDays reads a watering cycle typed by a user. Decimals are truncated and values below one become one.
func ParseCycleDays(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return coerceCycle(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: cycle %q is not a number", ErrValidation, s)
	}
	if f >= math.MaxInt32 {
		return 0, fmt.Errorf("%w: cycle %q is too large", ErrValidation, s)
	}
	if f < 1 {
		return 1, nil
	}
	return int(f), nil
}
