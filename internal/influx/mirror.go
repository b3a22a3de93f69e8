package influx

import (
	"context"
	"errors"
	"log"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/models"
)

const (
	measurement  = "plant_event"
	writeTimeout = 5 * time.Second
	tripAfter    = 3
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Mirror copies every committed plant event into InfluxDB as a time series point.
type Mirror struct {
	writer  pointWriter
	breaker *gobreaker.CircuitBreaker
	close   func()
}

// New connects to the configured bucket. Close must be called on shutdown.
func New(cfg config.InfluxConfig) *Mirror {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	m := newMirror(client.WriteAPIBlocking(cfg.Org, cfg.Bucket))
	m.close = client.Close
	log.Printf("[INFO] Mirroring plant events to InfluxDB bucket %s", cfg.Bucket)
	return m
}

func newMirror(w pointWriter) *Mirror {
	return &Mirror{
		writer: w,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "influx",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= tripAfter
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("[WARN] Circuit breaker %s changed from %s to %s", name, from, to)
			},
		}),
	}
}

// EventToPoint maps an event to a point tagged by plant and type. Details become string fields.
func EventToPoint(e models.EventEntry) *write.Point {
	tags := map[string]string{
		"plant_id": e.PlantID,
		"type":     string(e.Type),
	}
	fields := map[string]interface{}{
		"seq":   int64(e.Seq),
		"count": int64(1),
	}
	for k, v := range e.Details {
		if _, taken := fields[k]; !taken {
			fields[k] = v
		}
	}
	return influxdb2.NewPoint(measurement, tags, fields, e.Timestamp)
}

func (m *Mirror) Observe(ctx context.Context, entry models.EventEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, m.writer.WritePoint(ctx, EventToPoint(entry))
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		log.Printf("[WARN] InfluxDB unavailable, event %d not mirrored", entry.Seq)
	case err != nil:
		log.Printf("[ERROR] Failed to mirror event %d to InfluxDB: %v", entry.Seq, err)
	}
}

func (m *Mirror) Close() {
	if m.close != nil {
		m.close()
	}
}
