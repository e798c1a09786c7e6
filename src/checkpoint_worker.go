package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/ryansname/energyctl/src/energy"
	"github.com/ryansname/energyctl/src/store"
)

const checkpointInterval = 30 * time.Second

// restoreAccumulators creates one accumulator per variant, seeded from the checkpoint file
func restoreAccumulators(file *store.File, now time.Time) []*energy.Accumulator {
	variants := energy.Variants()
	accs := make([]*energy.Accumulator, 0, len(variants))

	for _, v := range variants {
		var saved *energy.Saved
		if cp, ok := file.Load(v.Name); ok {
			saved = &energy.Saved{Value: cp.Value, At: cp.At}
		}

		initial := energy.Restore(v.Window, saved, now)
		if saved != nil && initial != saved.Value {
			log.WithField("accumulator", v.Name).
				Infof("Checkpoint from %s is outside the current %s window, starting at 0", saved.At.Format(time.RFC3339), v.Window)
		}
		accs = append(accs, energy.NewAccumulator(v, initial, now))
	}
	return accs
}

// saveCheckpoints records every accumulator total and writes the file
func saveCheckpoints(file *store.File, accs []*energy.Accumulator) error {
	for _, acc := range accs {
		saved := acc.Saved()
		file.Save(acc.Name(), store.Checkpoint{Value: saved.Value, At: saved.At})
	}
	return file.Flush()
}

// checkpointWorker periodically persists accumulator totals
func checkpointWorker(ctx context.Context, clk clock.Clock, file *store.File, accs []*energy.Accumulator) {
	ticker := clk.Ticker(checkpointInterval)
	defer ticker.Stop()

	log.Infof("Checkpoint worker started (%s)", file.Path())

	for {
		select {
		case <-ticker.C:
			if err := saveCheckpoints(file, accs); err != nil {
				log.Errorf("Failed to save checkpoint: %v", err)
			}
		case <-ctx.Done():
			log.Info("Checkpoint worker stopped")
			return
		}
	}
}
