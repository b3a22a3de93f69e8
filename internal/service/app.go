package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/farm"
	"github.com/prite36/farm-monitor/internal/influx"
	"github.com/prite36/farm-monitor/internal/metrics"
	"github.com/prite36/farm-monitor/internal/mqtt"
	"github.com/prite36/farm-monitor/internal/scheduler"
	"github.com/prite36/farm-monitor/internal/server"
	"github.com/prite36/farm-monitor/internal/slack"
	"github.com/prite36/farm-monitor/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// App owns the single plant registry and every component that drives or observes it.
type App struct {
	cfg          *config.Config
	registry     *farm.Registry
	mqttClient   *mqtt.Client
	scheduler    *scheduler.Scheduler
	server       *http.Server
	influx       *influx.Mirror
	closeStorage func() error
}

type repository interface {
	farm.PlantRepository
	farm.EventRepository
}

func openStorage(cfg *config.Config) (repository, func() error, error) {
	if cfg.Storage.Backend == "file" {
		log.Printf("Using file storage in %s", cfg.Storage.Dir)
		fs, err := storage.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() error { return nil }, nil
	}

	db, err := storage.OpenDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	return storage.NewDBStore(db), sqlDB.Close, nil
}

// OpenRegistry opens the configured storage backend and loads the registry from it.
// The returned func closes the storage.
func OpenRegistry(ctx context.Context, cfg *config.Config) (*farm.Registry, func() error, error) {
	repo, closeStorage, err := openStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	reg, err := farm.Open(ctx, repo, repo,
		farm.WithIDGenerator(farm.NewIDGenerator(cfg.Farm.IDStrategy)),
		farm.WithCriticalAfter(cfg.Farm.CriticalAfterDays),
		farm.WithImportCycleDays(cfg.Farm.ImportCycleDays),
	)
	if err != nil {
		closeStorage()
		return nil, nil, err
	}
	return reg, closeStorage, nil
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	reg, closeStorage, err := OpenRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, registry: reg, closeStorage: closeStorage}

	slackClient := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.ChannelID)
	m := metrics.New(a.registry)
	a.registry.AddSink(m)
	a.registry.AddSink(slack.NewNotifier(slackClient, a.registry))

	if cfg.InfluxEnabled() {
		a.influx = influx.New(cfg.Influx)
		a.registry.AddSink(a.influx)
	}

	if cfg.MQTTEnabled() {
		a.mqttClient, err = mqtt.NewClient(cfg.MQTT, a.registry)
		if err != nil {
			a.Stop()
			return nil, err
		}
		a.registry.AddSink(a.mqttClient)
	} else {
		log.Println("MQTT broker is not configured. Device reports are disabled.")
	}

	a.scheduler, err = scheduler.NewScheduler(cfg.Schedule.Times, cfg.Schedule.Timezone, a.registry, slackClient)
	if err != nil {
		a.Stop()
		return nil, err
	}

	a.server = server.New(cfg, a.registry, server.Options{Metrics: m.Handler(), Slack: slackClient})
	return a, nil
}

func (a *App) Registry() *farm.Registry {
	return a.registry
}

func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Start runs the scheduler and HTTP server until an interrupt or a server failure.
func (a *App) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.scheduler.Start(); err != nil {
		a.Stop()
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Println("Farm monitor started. Press Ctrl+C to stop.")

	var err error
	select {
	case <-sigChan:
	case err = <-serverErr:
		log.Printf("[ERROR] HTTP server failed: %v", err)
	}

	a.Stop()
	return err
}

func (a *App) Stop() {
	log.Println("Shutting down...")

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			log.Printf("[ERROR] HTTP server shutdown: %v", err)
		}
		cancel()
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.mqttClient != nil {
		a.mqttClient.Close()
	}

	if a.influx != nil {
		a.influx.Close()
	}

	if a.closeStorage != nil {
		if err := a.closeStorage(); err != nil {
			log.Printf("[ERROR] Closing storage: %v", err)
		}
	}

	log.Println("Farm monitor stopped")
}
