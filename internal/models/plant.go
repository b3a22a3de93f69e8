package models

import (
	"time"
)

type PlantStatus string

const (
	StatusOK      PlantStatus = "ok"
	StatusProblem PlantStatus = "problem"
)

// HealthStatus is derived from the stored status and watering recency. It is never persisted.
type HealthStatus string

const (
	HealthOK      HealthStatus = "ok"
	HealthOverdue HealthStatus = "overdue"
	HealthProblem HealthStatus = "problem"
)

type Plant struct {
	ID             string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Field          string      `gorm:"not null" json:"field"`
	Species        string      `gorm:"not null" json:"species"`
	WaterCycleDays int         `gorm:"not null" json:"waterCycleDays"`
	Status         PlantStatus `gorm:"type:varchar(20);not null" json:"status"`
	LastWatered    time.Time   `gorm:"not null" json:"lastWatered"`
	// Ordinal keeps creation order in storage backends that do not preserve it.
	Ordinal        int         `gorm:"not null;default:0" json:"-"`
}

func (Plant) TableName() string {
	return "plants"
}

// PlantView is a plant together with the values derived from it at a given instant.
type PlantView struct {
	Plant
	DaysSinceWatering int          `json:"daysSinceWatering"`
	NeedsWatering     bool         `json:"needsWatering"`
	Health            HealthStatus `json:"healthStatus"`
	NextWatering      time.Time    `json:"nextWatering"`
	OverdueDays       int          `json:"overdueDays"`
	Critical          bool         `json:"critical"`
}

// Summary holds the dashboard counters.
type Summary struct {
	Total    int `json:"total"`
	OK       int `json:"ok"`
	Overdue  int `json:"overdue"`
	Problem  int `json:"problem"`
	Critical int `json:"critical"`
}
