package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ryansname/energyctl/src/dashboard"
	"github.com/ryansname/energyctl/src/energy"
	"github.com/ryansname/energyctl/src/store"

	// Tariff periods need Europe/Madrid even on hosts without zoneinfo
	_ "time/tzdata"
)

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max 10 retries).
// Retry count resets if worker ran for 2+ minutes before failing.
// After exhausting retries, cancels context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	name string,
	fn func(ctx context.Context),
) {
	const maxRetries = 10
	const maxDelay = 10 * time.Minute
	const resetAfter = 2 * time.Minute

	go func() {
		retries := 0
		delay := time.Second

		for {
			startTime := time.Now()
			var panicValue any

			func() {
				defer func() {
					panicValue = recover()
				}()
				fn(ctx)
			}()

			// Returned normally: context cancelled or the worker finished
			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = time.Second
			}

			retries++
			log.Errorf("Panic in %s (attempt %d/%d): %v", name, retries, maxRetries, panicValue)

			if retries >= maxRetries {
				log.Errorf("%s failed after %d retries, shutting down", name, maxRetries)
				cancel()
				return
			}

			log.Infof("%s will retry in %v", name, delay)
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

var (
	configFile string
	debugMode  bool
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "energyctl",
		Short:        "Energy balance and 2.0TD tariff readouts for Home Assistant",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			config, err := setup()
			if err != nil {
				return err
			}
			return run(config)
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides log_level in the config")
	root.Flags().BoolVar(&debugMode, "debug", false, "start the interactive debug console")

	root.AddCommand(&cobra.Command{
		Use:   "dashboard",
		Short: "Print a Lovelace card for the readouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := dashboard.Generate(dashboardConfig())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	})

	return root
}

// dashboardConfig lists every readout and links the daily totals in the sankey card
func dashboardConfig() dashboard.Config {
	rows := make([]dashboard.Entity, 0, len(Readouts()))
	for _, r := range Readouts() {
		rows = append(rows, dashboard.Entity{ID: r.EntityID(), Label: r.Name})
	}
	return dashboard.Config{
		Title: "Energy Manager",
		Rows:  rows,
		Groups: dashboard.DefaultGroups(
			ReadoutImported.EntityID(),
			ReadoutExported.EntityID(),
			ReadoutHomeConsumption.EntityID(),
		),
	}
}

// setup loads .env and the config, and applies the log level
func setup() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warnf("Error loading .env file: %v", err)
	}

	v := viper.New()
	if logLevel != "" {
		v.Set("log_level", logLevel)
	}
	config, err := loadConfig(v, configFile)
	if err != nil {
		return nil, err
	}

	level, _ := log.ParseLevel(config.LogLevel) // validated by loadConfig
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return config, nil
}

func run(config *Config) error {
	log.Info("Starting energyctl...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()
	metrics := NewMetrics()
	readouts := NewReadoutRegistry()

	checkpoints, err := store.Open(config.StateFile)
	if err != nil {
		log.Warnf("Ignoring checkpoint file: %v", err)
	}
	accs := restoreAccumulators(checkpoints, clk.Now().In(config.Loc()))

	msgChan := make(chan SensorMessage, 10)
	readingsChan := make(chan DisplayData, 10)
	mqttOutgoingChan := make(chan MQTTMessage, 100)
	mqttClientChan := make(chan mqtt.Client, 1)

	SafeGo(ctx, cancel, "mqtt-sender-worker", func(ctx context.Context) {
		mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan)
	})

	sender := NewMQTTSender(mqttOutgoingChan)
	publisher := NewReadoutPublisher(sender, readouts, metrics, clk)

	log.Info("Creating Home Assistant entities...")
	for _, r := range Readouts() {
		if err := sender.CreateReadoutEntity(r); err != nil {
			return fmt.Errorf("creating %s entity: %w", r.Key, err)
		}
	}

	booleanTopics := map[string]bool{}
	if config.Sensors.WorkdayTopic != "" {
		booleanTopics[config.Sensors.WorkdayTopic] = true
	}
	SafeGo(ctx, cancel, "readings-worker", func(ctx context.Context) {
		readingsWorker(ctx, msgChan, readingsChan, booleanTopics, metrics)
	})

	downstreamChans := make(map[string]chan<- DisplayData)

	var netBalance *energy.Accumulator
	for _, acc := range accs {
		readout, ok := readoutForVariant(acc.Variant())
		if !ok {
			return fmt.Errorf("no readout for accumulator %s", acc.Name())
		}
		if acc.Name() == energy.NetBalance.Name {
			netBalance = acc
		}

		dataChan := make(chan DisplayData, 10)
		downstreamChans[acc.Name()] = dataChan

		worker := newAccumulatorWorker(acc, readout, config.Sensors, config.Loc(), publisher, metrics)
		SafeGo(ctx, cancel, acc.Name(), func(ctx context.Context) {
			worker.run(ctx, clk, dataChan)
		})
	}

	tariffChan := make(chan DisplayData, 10)
	downstreamChans["tariff"] = tariffChan
	tariff := newTariffWorker(config, publisher, metrics)
	SafeGo(ctx, cancel, "tariff-worker", func(ctx context.Context) {
		tariff.run(ctx, clk, tariffChan)
	})

	projectionChan := make(chan DisplayData, 10)
	downstreamChans["projection"] = projectionChan
	projection := newProjectionWorker(netBalance, config, publisher, metrics)
	SafeGo(ctx, cancel, "projection-worker", func(ctx context.Context) {
		projection.run(ctx, clk, projectionChan)
	})

	if debugMode {
		debugChan := make(chan DisplayData, 10)
		downstreamChans["debug"] = debugChan
		SafeGo(ctx, cancel, "debug-worker", func(ctx context.Context) {
			debugWorker(ctx, cancel, debugChan, readouts)
		})
	}

	SafeGo(ctx, cancel, "broadcast-worker", func(ctx context.Context) {
		broadcastWorker(ctx, readingsChan, downstreamChans)
	})

	SafeGo(ctx, cancel, "checkpoint-worker", func(ctx context.Context) {
		checkpointWorker(ctx, clk, checkpoints, accs)
	})

	if config.HTTP.Listen != "" {
		router := newStatusRouter(readouts, metrics)
		SafeGo(ctx, cancel, "status-server", func(ctx context.Context) {
			statusServerWorker(ctx, config.HTTP.Listen, router)
		})
	}

	mqttDone := make(chan struct{})
	SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
		mqttWorker(ctx, clk, config.MQTT, config.Sensors.Topics(), msgChan, mqttClientChan)
		close(mqttDone)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	runErr := waitForShutdown(ctx, sigChan)
	cancel()

	// Let the MQTT worker publish offline and disconnect
	if !waitForWorker(mqttDone, shutdownTimeout) {
		log.Warn("MQTT worker did not stop in time")
	}

	if err := saveCheckpoints(checkpoints, accs); err != nil {
		log.Errorf("Failed to save final checkpoint: %v", err)
	}
	return runErr
}

const shutdownTimeout = 5 * time.Second

// ErrWorkerFailed is returned when a worker exhausted its retries and cancelled the service
var ErrWorkerFailed = errors.New("worker failed, shutting down")

// waitForShutdown blocks until a signal arrives or the context is cancelled by SafeGo
func waitForShutdown(ctx context.Context, sigChan <-chan os.Signal) error {
	select {
	case sig := <-sigChan:
		log.Infof("Shutting down (%s)...", sig)
		return nil
	case <-ctx.Done():
		log.Warn("Shutting down due to error...")
		return ErrWorkerFailed
	}
}

// waitForWorker reports whether done closed within the timeout
func waitForWorker(done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
