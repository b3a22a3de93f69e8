package farm

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/prite36/farm-monitor/internal/models"
)

// EventLog is the append-only history of plant changes. It has no retention limit.
type EventLog struct {
	mu      sync.RWMutex
	entries []models.EventEntry
	lastSeq uint64
	now     func() time.Time
}

// NewEventLog returns a log seeded with previously persisted entries.
func NewEventLog(now func() time.Time, entries ...models.EventEntry) *EventLog {
	l := &EventLog{now: now}
	if l.now == nil {
		l.now = time.Now
	}
	l.entries = append(l.entries, entries...)
	for _, e := range entries {
		if e.Seq > l.lastSeq {
			l.lastSeq = e.Seq
		}
	}
	return l
}

// Append records a new entry stamped with the current time.
func (l *EventLog) Append(plantID string, typ models.EventType, details models.Details) models.EventEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastSeq++
	entry := models.EventEntry{
		Seq:       l.lastSeq,
		PlantID:   plantID,
		Timestamp: l.now(),
		Type:      typ,
		Details:   maps.Clone(details),
	}
	l.entries = append(l.entries, entry)
	return entry
}

// Query returns every entry for plantID, newest first.
func (l *EventLog) Query(plantID string) []models.EventEntry {
	l.mu.RLock()
	var out []models.EventEntry
	for _, e := range l.entries {
		if e.PlantID == plantID {
			out = append(out, e)
		}
	}
	l.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b models.EventEntry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.Seq, a.Seq)
	})
	return out
}

// Entries returns a copy of the full log in append order.
func (l *EventLog) Entries() []models.EventEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
