package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ryansname/energyctl/src/energy"
)

// Reasons a reading or tick was skipped
const (
	reasonUnavailable      = "unavailable"
	reasonParse            = "parse"
	reasonMissingCompanion = "missing_companion"
)

// Metrics makes the non-fatal outcomes of the service observable
type Metrics struct {
	registry *prometheus.Registry

	readingsSkipped *prometheus.CounterVec
	resets          *prometheus.CounterVec
	accumulated     *prometheus.GaugeVec
	published       *prometheus.CounterVec
	tariffPeriod    *prometheus.GaugeVec
	surplusGuard    prometheus.Counter
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readingsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energyctl_readings_skipped_total",
			Help: "Sensor readings or ticks ignored, by topic and reason.",
		}, []string{"topic", "reason"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energyctl_accumulator_resets_total",
			Help: "Window boundary resets, by accumulator.",
		}, []string{"accumulator"}),
		accumulated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energyctl_accumulator_wh",
			Help: "Current accumulator total in Wh.",
		}, []string{"accumulator"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energyctl_readouts_published_total",
			Help: "Readout state updates sent to MQTT.",
		}, []string{"readout"}),
		tariffPeriod: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energyctl_tariff_period",
			Help: "1 for the tariff period currently in effect, 0 otherwise.",
		}, []string{"period"}),
		surplusGuard: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "energyctl_surplus_guard_total",
			Help: "Surplus current calculations forced to 0 near the end of the hour.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.readingsSkipped,
		m.resets,
		m.accumulated,
		m.published,
		m.tariffPeriod,
		m.surplusGuard,
	)

	return m
}

func (m *Metrics) SkipReading(topic, reason string) {
	m.readingsSkipped.WithLabelValues(topic, reason).Inc()
}

func (m *Metrics) Reset(accumulator string) {
	m.resets.WithLabelValues(accumulator).Inc()
}

func (m *Metrics) SetAccumulated(accumulator string, wh float64) {
	m.accumulated.WithLabelValues(accumulator).Set(wh)
}

func (m *Metrics) Published(readout string) {
	m.published.WithLabelValues(readout).Inc()
}

func (m *Metrics) SurplusGuard() {
	m.surplusGuard.Inc()
}

func (m *Metrics) SetTariff(current energy.Period) {
	for _, p := range energy.Periods() {
		v := 0.0
		if p == current {
			v = 1
		}
		m.tariffPeriod.WithLabelValues(p.String()).Set(v)
	}
}
