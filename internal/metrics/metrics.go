package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prite36/farm-monitor/internal/models"
)

// SummarySource provides the dashboard counters collected on every scrape.
type SummarySource interface {
	Dashboard() models.Summary
}

// Metrics counts committed events and exposes plant health as gauges.
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
}

func New(source SummarySource) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farm_events_total",
			Help: "Plant history events recorded, by type.",
		}, []string{"type"}),
	}
	m.registry.MustRegister(
		m.events,
		&healthCollector{source: source},
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Observe(ctx context.Context, entry models.EventEntry) {
	m.events.WithLabelValues(string(entry.Type)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var plantsDesc = prometheus.NewDesc(
	"farm_plants",
	"Tracked plants by derived health status.",
	[]string{"health"}, nil,
)

var criticalDesc = prometheus.NewDesc(
	"farm_plants_critical",
	"Plants overdue by more than the critical threshold.",
	nil, nil,
)

type healthCollector struct {
	source SummarySource
}

func (c *healthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- plantsDesc
	ch <- criticalDesc
}

func (c *healthCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Dashboard()
	ch <- prometheus.MustNewConstMetric(plantsDesc, prometheus.GaugeValue, float64(s.OK), string(models.HealthOK))
	ch <- prometheus.MustNewConstMetric(plantsDesc, prometheus.GaugeValue, float64(s.Overdue), string(models.HealthOverdue))
	ch <- prometheus.MustNewConstMetric(plantsDesc, prometheus.GaugeValue, float64(s.Problem), string(models.HealthProblem))
	ch <- prometheus.MustNewConstMetric(criticalDesc, prometheus.GaugeValue, float64(s.Critical))
}
