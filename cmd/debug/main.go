package main

import (
	"context"
	"log"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/scheduler"
	"github.com/prite36/farm-monitor/internal/service"
	"github.com/prite36/farm-monitor/internal/slack"
)

func main() {
	log.Println("Starting debug run...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	reg, closeStorage, err := service.OpenRegistry(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}
	defer closeStorage()

	for _, v := range reg.Views() {
		log.Printf("%s | %s / %s | every %d days | %d days since watering | %s",
			v.ID, v.Field, v.Species, v.WaterCycleDays, v.DaysSinceWatering, v.Health)
	}

	slackClient := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.ChannelID)
	sched, err := scheduler.NewScheduler("", cfg.Schedule.Timezone, reg, slackClient)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// Run the job directly
	log.Println("Executing RunJob directly...")
	sched.RunJob()

	log.Println(slack.FormatSummary(reg.Dashboard()))
	log.Println("Debug run finished.")
}
