// Responsible for storing the readings relayed by the monitor server.
// Depends on the monitor server being online.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/NotCoffee418/elster_gateway/pkg/aggregator"
	"github.com/NotCoffee418/elster_gateway/pkg/config"
	"github.com/NotCoffee418/elster_gateway/pkg/interpreter"
	"github.com/NotCoffee418/elster_gateway/pkg/logging"
	"github.com/NotCoffee418/elster_gateway/pkg/meterdb"
	"github.com/NotCoffee418/elster_gateway/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "meter_collector",
		Usage: "store relayed Elster readings in SQLite",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file"},
			&cli.StringFlag{Name: "db", Usage: "database path (default /var/lib/elster_gateway/elster-meter.db)"},
			&cli.StringFlag{Name: "host", Usage: "monitor server host:port", EnvVars: []string{"MONITOR_HOST"}},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if err := config.LoadCollectorConfig(c.String("config")); err != nil {
		return err
	}
	cfg := config.ActiveCollectorConfig
	host := cfg.MonitorHost
	if c.IsSet("host") {
		host = c.String("host")
	}

	logger, _, _ := logging.New(logging.Options{NoLog: true})

	// Initialize database
	if err := meterdb.InitializeDatabase(c.String("db"), logger); err != nil {
		return err
	}
	defer meterdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runAggregator(ctx, logger)

	// Subscribe to websocket with revive
	listener := interpreter.NewListener(host, cfg.TLSEnabled, logger, func(reading *types.MeterReading) {
		handleMeterReading(logger, reading)
	})
	return listener.Run(ctx)
}

// Handle meter reading data
func handleMeterReading(log logrus.FieldLogger, reading *types.MeterReading) {
	row, err := meterdb.FromMeterReading(reading)
	if err != nil {
		log.Warnf("Skipping reading: %v", err)
		return
	}
	if err := meterdb.InsertMeterReading(row); err != nil {
		log.Errorf("Failed to store reading: %v", err)
		return
	}
	log.Debugf("Stored reading from gateway %s at %s", reading.Gateway, reading.Timestamp)
}

// runAggregator condenses stored readings shortly after every full hour.
func runAggregator(ctx context.Context, log logrus.FieldLogger) {
	for {
		next := time.Now().Truncate(time.Hour).Add(time.Hour + time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		if err := aggregator.AggregateAndCleanup(time.Now(), log); err != nil {
			log.Errorf("Aggregation failed: %v", err)
		}
	}
}
