package main

import (
	"context"
	"log"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/service"
)

func main() {
	log.Println("Starting farm monitor...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := service.NewApp(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Start(); err != nil {
		log.Fatalf("Application stopped with error: %v", err)
	}
}
