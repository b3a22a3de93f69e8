package farm

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator hands out plant identifiers.
type IDGenerator interface {
	NewID() string
}

// SequenceIDs issues "1", "2", ... and can be advanced past identifiers loaded from storage.
type SequenceIDs struct {
	mu   sync.Mutex
	last uint64
}

func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

func (s *SequenceIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return strconv.FormatUint(s.last, 10)
}

// Observe makes sure the next issued id is greater than id when id is numeric.
func (s *SequenceIDs) Observe(id string) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return
	}
	s.mu.Lock()
	if n > s.last {
		s.last = n
	}
	s.mu.Unlock()
}

// UUIDs issues random version 4 UUIDs.
type UUIDs struct{}

func (UUIDs) NewID() string {
	return uuid.NewString()
}

// NewIDGenerator maps a configured strategy name to a generator. Unknown names fall back to a sequence.
func NewIDGenerator(strategy string) IDGenerator {
	if strategy == "uuid" {
		return UUIDs{}
	}
	return NewSequenceIDs()
}
