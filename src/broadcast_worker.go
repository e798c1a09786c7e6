package main

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// broadcastWorker fans each reading snapshot out to the downstream workers
func broadcastWorker(ctx context.Context, inputChan <-chan DisplayData, outputChans map[string]chan<- DisplayData) {
	for {
		select {
		case data := <-inputChan:
			for name, ch := range outputChans {
				select {
				case ch <- data:
				case <-ctx.Done():
					return
				default:
					log.WithField("worker", name).Warn("Downstream channel full, dropping reading")
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
