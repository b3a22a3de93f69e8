package farm

import (
	"time"

	"github.com/prite36/farm-monitor/internal/models"
)

const day = 24 * time.Hour

// DefaultCriticalAfterDays is how many days past its cycle a plant may go before it is flagged critical.
const DefaultCriticalAfterDays = 3

// DaysSince returns the number of started days between last and now, rounded up.
func DaysSince(last, now time.Time) int {
	elapsed := now.Sub(last)
	if elapsed <= 0 {
		return 0
	}
	days := elapsed / day
	if elapsed%day != 0 {
		days++
	}
	return int(days)
}

// Health derives the tri-state health of a plant. A problem status always wins over watering timing.
func Health(p models.Plant, now time.Time) models.HealthStatus {
	if p.Status == models.StatusProblem {
		return models.HealthProblem
	}
	if DaysSince(p.LastWatered, now) > p.WaterCycleDays {
		return models.HealthOverdue
	}
	return models.HealthOK
}

// Assess computes every derived value of p at now.
func Assess(p models.Plant, now time.Time, criticalAfter int) models.PlantView {
	days := DaysSince(p.LastWatered, now)
	overdue := days - p.WaterCycleDays
	if overdue < 0 {
		overdue = 0
	}
	return models.PlantView{
		Plant:             p,
		DaysSinceWatering: days,
		NeedsWatering:     days > p.WaterCycleDays,
		Health:            Health(p, now),
		NextWatering:      p.LastWatered.AddDate(0, 0, p.WaterCycleDays),
		OverdueDays:       overdue,
		Critical:          overdue > criticalAfter,
	}
}

// Summarize counts views by health.
func Summarize(views []models.PlantView) models.Summary {
	s := models.Summary{Total: len(views)}
	for _, v := range views {
		switch v.Health {
		case models.HealthProblem:
			s.Problem++
		case models.HealthOverdue:
			s.Overdue++
		default:
			s.OK++
		}
		if v.Critical {
			s.Critical++
		}
	}
	return s
}
