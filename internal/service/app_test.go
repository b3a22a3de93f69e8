package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prite36/farm-monitor/internal/config"
)

func fileConfig(t *testing.T) *config.Config {
	return &config.Config{
		Storage:  config.StorageConfig{Backend: "file", Dir: t.TempDir()},
		Schedule: config.ScheduleConfig{Timezone: "UTC"},
		Server:   config.ServerConfig{Addr: "127.0.0.1:0"},
		Farm:     config.FarmConfig{CriticalAfterDays: 3, ImportCycleDays: 3, IDStrategy: "sequence"},
	}
}

func TestNewAppWiresRegistryAndMetrics(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, fileConfig(t))
	require.NoError(t, err)
	defer app.Stop()

	_, err = app.Registry().Add(ctx, "North 1", "Tomato", 3)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `farm_events_total{type="added"} 1`)
}

func TestOpenRegistryReloadsFileStorage(t *testing.T) {
	ctx := context.Background()
	cfg := fileConfig(t)

	reg, closeStorage, err := OpenRegistry(ctx, cfg)
	require.NoError(t, err)
	p, err := reg.Add(ctx, "North 1", "Tomato", 3)
	require.NoError(t, err)
	require.NoError(t, closeStorage())

	reopened, closeStorage, err := OpenRegistry(ctx, cfg)
	require.NoError(t, err)
	defer closeStorage()
	_, ok := reopened.Plant(p.ID)
	assert.True(t, ok)
}

func TestNewAppRejectsBadTimezone(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Schedule.Timezone = "Nowhere/Land"

	_, err := NewApp(context.Background(), cfg)
	assert.Error(t, err)
}
