package models

import (
	"time"
)

type EventType string

const (
	EventAdded           EventType = "added"
	EventWatered         EventType = "watered"
	EventEdited          EventType = "edited"
	EventProblemMarked   EventType = "problem_marked"
	EventProblemCleared  EventType = "problem_cleared"
	EventProblemReported EventType = "problem_reported"
)

// Details is the free-form payload attached to an event.
type Details map[string]string

// EventEntry is one record of the append-only plant history.
type EventEntry struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement:false" json:"seq"`
	PlantID   string    `gorm:"type:varchar(64);index;not null" json:"plantId"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	Type      EventType `gorm:"type:varchar(32);not null" json:"type"`
	Details   Details   `gorm:"serializer:json" json:"details,omitempty"`
}

func (EventEntry) TableName() string {
	return "plant_events"
}
