package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/ryansname/energyctl/src/energy"
)

const (
	estimateInterval = 10 * time.Second
	surplusInterval  = time.Minute
)

// projectionWorker publishes the end-of-hour estimate and the surplus current
// from the hourly net-balance accumulator and the latest grid reading
type projectionWorker struct {
	netBalance  *energy.Accumulator
	gridTopic   string
	lineVoltage float64
	loc         *time.Location
	publisher   *ReadoutPublisher
	metrics     *Metrics

	grid      float64
	gridValid bool
}

func newProjectionWorker(
	netBalance *energy.Accumulator,
	config *Config,
	publisher *ReadoutPublisher,
	metrics *Metrics,
) *projectionWorker {
	return &projectionWorker{
		netBalance:  netBalance,
		gridTopic:   config.Sensors.GridTopic,
		lineVoltage: config.LineVoltage,
		loc:         config.Loc(),
		publisher:   publisher,
		metrics:     metrics,
	}
}

func (w *projectionWorker) handleData(data DisplayData) {
	if data.Trigger != w.gridTopic {
		return
	}
	grid, ok := data.GetFloat(w.gridTopic)
	w.grid = grid.Current
	w.gridValid = ok
}

// secondsLeft is measured against the net-balance window in the configured zone
func (w *projectionWorker) secondsLeft(now time.Time) float64 {
	return w.netBalance.Variant().Window.SecondsLeft(now.In(w.loc))
}

func (w *projectionWorker) publishEstimate(now time.Time) {
	if !w.gridValid {
		w.metrics.SkipReading(w.gridTopic, reasonUnavailable)
		log.Debug("Grid reading unavailable, holding estimate")
		return
	}
	estimate := energy.EstimateWindowEnd(w.netBalance.Value(), w.grid, w.secondsLeft(now))
	w.publisher.PublishFloat(ReadoutNetBalanceEstimate, estimate)
}

func (w *projectionWorker) publishSurplus(now time.Time) {
	if !w.gridValid {
		w.metrics.SkipReading(w.gridTopic, reasonUnavailable)
		log.Debug("Grid reading unavailable, holding surplus current")
		return
	}
	secondsLeft := w.secondsLeft(now)
	if energy.SurplusGuarded(secondsLeft) {
		w.metrics.SurplusGuard()
	}
	current := energy.SurplusCurrent(w.grid, w.netBalance.Value(), secondsLeft, w.lineVoltage)
	w.publisher.PublishFloat(ReadoutSurplusCurrent, current)
}

func (w *projectionWorker) run(ctx context.Context, clk clock.Clock, dataChan <-chan DisplayData) {
	estimateTicker := clk.Ticker(estimateInterval)
	defer estimateTicker.Stop()
	surplusTicker := clk.Ticker(surplusInterval)
	defer surplusTicker.Stop()

	log.Info("Projection worker started")

	for {
		select {
		case data := <-dataChan:
			w.handleData(data)
		case now := <-estimateTicker.C:
			w.publishEstimate(now)
		case now := <-surplusTicker.C:
			w.publishSurplus(now)
		case <-ctx.Done():
			log.Info("Projection worker stopped")
			return
		}
	}
}
