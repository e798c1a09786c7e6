package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/ryansname/energyctl/src/energy"
)

// tariffWorker publishes the 2.0TD period currently in effect
type tariffWorker struct {
	power        energy.ContractedPower
	workdayTopic string
	gridTopic    string
	loc          *time.Location
	publisher    *ReadoutPublisher
	metrics      *Metrics

	holiday bool
	last    energy.Period
	started bool
	grid    *energy.RollingMinMax
}

func newTariffWorker(config *Config, publisher *ReadoutPublisher, metrics *Metrics) *tariffWorker {
	return &tariffWorker{
		power:        config.Tariff.ContractedPower(),
		workdayTopic: config.Sensors.WorkdayTopic,
		gridTopic:    config.Sensors.GridTopic,
		loc:          config.Loc(),
		publisher:    publisher,
		metrics:      metrics,
		grid:         energy.NewRollingMinMax(),
	}
}

// handleData tracks grid peaks and the workday sensor.
// Workday off means today is a holiday; unknown means it is not.
// It reports whether the holiday flag changed.
func (w *tariffWorker) handleData(data DisplayData) bool {
	if data.Trigger == w.gridTopic {
		if grid, ok := data.GetFloat(w.gridTopic); ok {
			w.grid.Observe(grid.Current, grid.Timestamp)
		}
		return false
	}
	if w.workdayTopic == "" || data.Trigger != w.workdayTopic {
		return false
	}
	workday, ok := data.GetBoolean(w.workdayTopic)
	holiday := ok && !workday
	if holiday == w.holiday {
		return false
	}
	w.holiday = holiday
	log.Infof("Holiday: %v", holiday)
	return true
}

func (w *tariffWorker) update(now time.Time) {
	period, power := energy.Classify(now.In(w.loc), w.holiday, w.power)

	if !w.started || period != w.last {
		log.Infof("Tariff period: %s (%s, %.2f kW)", period, period.Code(), power)
	}
	w.started = true
	w.last = period

	attrs := map[string]any{
		"contracted_power": power,
		"period_code":      period.Code(),
		"region":           "ES",
		"holiday":          w.holiday,
	}
	// Import is negative grid power; the peak is checked against the contracted kW
	w.grid.Advance(now)
	if lowest, ok := w.grid.Min(); ok {
		peak := max(0, -lowest)
		attrs["peak_import_1h"] = energy.Round2(peak)
		attrs["contracted_power_used"] = energy.Round2(peak / (power * 1000))
	}
	w.publisher.Publish(ReadoutTariff, period.String(), attrs)
	w.metrics.SetTariff(period)
}

func (w *tariffWorker) run(ctx context.Context, clk clock.Clock, dataChan <-chan DisplayData) {
	ticker := clk.Ticker(time.Minute)
	defer ticker.Stop()

	log.Info("Tariff worker started")
	w.update(clk.Now())

	for {
		select {
		case data := <-dataChan:
			if w.handleData(data) {
				w.update(clk.Now())
			}
		case now := <-ticker.C:
			w.update(now)
		case <-ctx.Done():
			log.Info("Tariff worker stopped")
			return
		}
	}
}
