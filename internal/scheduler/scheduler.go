package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/prite36/farm-monitor/internal/farm"
	"github.com/prite36/farm-monitor/internal/models"
)

const jobTimeout = 2 * time.Minute

// Farm is the registry surface the watering job needs.
type Farm interface {
	AutoWaterOverdue(ctx context.Context) (int, error)
	Views() []models.PlantView
}

// Digester receives the outcome of each run.
type Digester interface {
	SendDigest(watered int, s models.Summary, attention []models.PlantView)
}

// Scheduler runs the automatic watering job at fixed times of day.
type Scheduler struct {
	scheduler *gocron.Scheduler
	times     string
	farm      Farm
	digest    Digester
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(times, timezone string, f Farm, digest Digester) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %q: %w", timezone, err)
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		times:     times,
		farm:      f,
		digest:    digest,
	}, nil
}

// Start registers one daily job per configured time and begins execution.
func (s *Scheduler) Start() error {
	scheduled := 0
	for _, scheduleTime := range strings.Split(s.times, ",") {
		trimmedTime := strings.TrimSpace(scheduleTime)
		if trimmedTime == "" {
			continue
		}
		log.Printf("Scheduling automatic watering at %s", trimmedTime)
		if _, err := s.scheduler.Every(1).Day().At(trimmedTime).Do(s.RunJob); err != nil {
			return fmt.Errorf("failed to schedule job at %s: %w", trimmedTime, err)
		}
		scheduled++
	}
	if scheduled == 0 {
		log.Println("No schedule times configured. Automatic watering is disabled.")
		return nil
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.scheduler.Stop()
}

// RunJob waters every overdue plant and reports the result.
// It can also be called directly for debugging purposes.
func (s *Scheduler) RunJob() {
	log.Println("Starting automatic watering run...")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	watered, err := s.farm.AutoWaterOverdue(ctx)
	if err != nil {
		log.Printf("[ERROR] Automatic watering could not be saved: %v", err)
	}

	views := s.farm.Views()
	var attention []models.PlantView
	for _, v := range views {
		if v.Health == models.HealthProblem || v.Critical {
			attention = append(attention, v)
		}
	}
	summary := farm.Summarize(views)

	log.Printf("Automatic watering run finished: %d watered, %d problem, %d critical.", watered, summary.Problem, summary.Critical)
	if s.digest != nil && (watered > 0 || len(attention) > 0) {
		s.digest.SendDigest(watered, summary, attention)
	}
}
