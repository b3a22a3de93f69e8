package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/farm"
	"github.com/prite36/farm-monitor/internal/slack"
)

type StatusResponse struct {
	Environment string `json:"environment"`
	Status      string `json:"status"`
}

// Options carries optional collaborators. Nil fields disable the matching routes.
type Options struct {
	Metrics http.Handler
	Slack   *slack.Client
}

// NewHandler builds the routed, CORS-wrapped handler.
func NewHandler(cfg *config.Config, reg *farm.Registry, opts Options) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "OK")
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
		writeJSON(w, http.StatusOK, StatusResponse{Environment: env, Status: "ok"})
	})

	mux.HandleFunc("GET /api/v1/dashboard", DashboardHandler(reg))
	mux.HandleFunc("GET /api/v1/plants", ListPlantsHandler(reg))
	mux.HandleFunc("POST /api/v1/plants", AddPlantHandler(reg))
	mux.HandleFunc("GET /api/v1/plants/{id}", GetPlantHandler(reg))
	mux.HandleFunc("PUT /api/v1/plants/{id}", EditPlantHandler(reg))
	mux.HandleFunc("POST /api/v1/plants/{id}/water", WaterPlantHandler(reg))
	mux.HandleFunc("POST /api/v1/plants/{id}/toggle-problem", ToggleProblemHandler(reg))
	mux.HandleFunc("GET /api/v1/plants/{id}/history", HistoryHandler(reg))
	mux.HandleFunc("POST /api/v1/auto-water", AutoWaterHandler(reg))
	mux.HandleFunc("POST /api/v1/import", ImportHandler(reg))

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if cfg.Slack.SigningSecret != "" {
		mux.HandleFunc("POST /slack/events", SlackEventsHandler(cfg, reg, opts.Slack))
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	})
	return c.Handler(mux)
}

// New creates a new HTTP server and sets up the routes.
func New(cfg *config.Config, reg *farm.Registry, opts Options) *http.Server {
	log.Printf("API Server configured to listen on %s", cfg.Server.Addr)
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           NewHandler(cfg, reg, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
