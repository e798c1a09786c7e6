package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/ryansname/energyctl/src/energy"
)

// accumulatorWorker feeds grid samples into one accumulator and publishes its total
type accumulatorWorker struct {
	acc             *energy.Accumulator
	readout         ReadoutSpec
	gridTopic       string
	productionTopic string
	loc             *time.Location
	publisher       *ReadoutPublisher
	metrics         *Metrics
	logger          *log.Entry
}

func newAccumulatorWorker(
	acc *energy.Accumulator,
	readout ReadoutSpec,
	sensors SensorsConfig,
	loc *time.Location,
	publisher *ReadoutPublisher,
	metrics *Metrics,
) *accumulatorWorker {
	return &accumulatorWorker{
		acc:             acc,
		readout:         readout,
		gridTopic:       sensors.GridTopic,
		productionTopic: sensors.ProductionTopic,
		loc:             loc,
		publisher:       publisher,
		metrics:         metrics,
		logger:          log.WithField("accumulator", acc.Name()),
	}
}

func (w *accumulatorWorker) publish(total float64) {
	w.metrics.SetAccumulated(w.acc.Name(), total)
	w.publisher.PublishFloat(w.readout, total)
}

func (w *accumulatorWorker) checkBoundary(now time.Time) bool {
	if !w.acc.CheckBoundary(now.In(w.loc)) {
		return false
	}
	w.metrics.Reset(w.acc.Name())
	w.logger.Infof("%s window started, total reset to 0", w.acc.Variant().Window)
	return true
}

// handleData integrates the grid reading carried by a snapshot
func (w *accumulatorWorker) handleData(data DisplayData) {
	// Grid updates drive every variant; production is read as the companion value
	if data.Trigger != w.gridTopic {
		return
	}
	grid, ok := data.GetFloat(w.gridTopic)
	if !ok {
		return
	}

	at := grid.Timestamp.In(w.loc)
	if w.checkBoundary(at) {
		w.publish(w.acc.Value())
	}

	in := energy.Inputs{Grid: grid.Current}
	if pv, ok := data.GetFloat(w.productionTopic); ok {
		in.Production = pv.Current
		in.HasProduction = true
	}

	total, ok := w.acc.Sample(in, at)
	if !ok {
		w.metrics.SkipReading(w.productionTopic, reasonMissingCompanion)
		w.logger.Debug("Production reading unavailable, skipping sample")
		return
	}
	w.publish(total)
}

// handleTick resets the total when a window boundary has passed without samples
func (w *accumulatorWorker) handleTick(now time.Time) {
	if w.checkBoundary(now) {
		w.publish(w.acc.Value())
	}
}

func (w *accumulatorWorker) run(ctx context.Context, clk clock.Clock, dataChan <-chan DisplayData) {
	ticker := clk.Ticker(w.acc.Variant().Window.TickInterval())
	defer ticker.Stop()

	w.logger.Infof("Accumulator worker started (%.2f Wh restored)", w.acc.Value())
	w.handleTick(clk.Now())
	w.publish(w.acc.Value())

	for {
		select {
		case data := <-dataChan:
			w.handleData(data)
		case now := <-ticker.C:
			w.handleTick(now)
		case <-ctx.Done():
			w.logger.Info("Accumulator worker stopped")
			return
		}
	}
}
