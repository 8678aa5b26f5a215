// Package metrics exposes Prometheus instruments for ingestion, the mirror
// trigger and the live feed. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"sensor-dashboard/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensor_dashboard"

type Metrics struct {
	Registry *prometheus.Registry

	historyIngested   *prometheus.CounterVec
	mirrorWrites      *prometheus.CounterVec
	feedDropped       *prometheus.CounterVec
	loginAttempts     *prometheus.CounterVec
	streamSubscribers prometheus.Gauge

	temperature *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	dust        *prometheus.GaugeVec
	battery     *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		historyIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_ingested_total",
			Help:      "History entries recorded, by source.",
		}, []string{"source"}),
		mirrorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_writes_total",
			Help:      "Latest-reading mirror writes onto sensor rows, by result.",
		}, []string{"result"}),
		feedDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_dropped_total",
			Help:      "Feed events dropped on a full subscriber buffer, by topic.",
		}, []string{"topic"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login and signup attempts, by result.",
		}, []string{"result"}),
		streamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open dashboard event streams.",
		}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_temperature_celsius",
			Help:      "Latest temperature reading.",
		}, []string{"mac"}),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_humidity_percent",
			Help:      "Latest relative humidity reading.",
		}, []string{"mac"}),
		dust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_dust_ugm3",
			Help:      "Latest dust (PM) reading.",
		}, []string{"mac"}),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_battery_percent",
			Help:      "Latest battery level.",
		}, []string{"mac"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.historyIngested,
		m.mirrorWrites,
		m.feedDropped,
		m.loginAttempts,
		m.streamSubscribers,
		m.temperature,
		m.humidity,
		m.dust,
		m.battery,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveReading counts a recorded entry and updates the per-device gauges.
func (m *Metrics) ObserveReading(source string, entry storage.HistoryEntry) {
	if m == nil {
		return
	}
	m.historyIngested.WithLabelValues(source).Inc()

	set := func(g *prometheus.GaugeVec, v *float64) {
		if v != nil {
			g.WithLabelValues(entry.MAC).Set(*v)
		}
	}
	set(m.temperature, entry.Temperature)
	set(m.humidity, entry.Humidity)
	set(m.dust, entry.Dust)
	set(m.battery, entry.Battery)
}

func (m *Metrics) MirrorWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mirrorWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) FeedDropped(topic string) {
	if m == nil {
		return
	}
	m.feedDropped.WithLabelValues(topic).Inc()
}

func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) StreamOpened() {
	if m != nil {
		m.streamSubscribers.Inc()
	}
}

func (m *Metrics) StreamClosed() {
	if m != nil {
		m.streamSubscribers.Dec()
	}
}
