// Elster gateway reads the meter's serial frames and forwards readings to
// the monitoring server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/NotCoffee418/elster_gateway/pkg/config"
	"github.com/NotCoffee418/elster_gateway/pkg/frame"
	"github.com/NotCoffee418/elster_gateway/pkg/gateway"
	"github.com/NotCoffee418/elster_gateway/pkg/logging"
	"github.com/NotCoffee418/elster_gateway/pkg/port_reader"
	"github.com/NotCoffee418/elster_gateway/pkg/remote"
	"github.com/NotCoffee418/elster_gateway/pkg/scheduler"
)

const (
	program    = "Elster"
	logProgram = "elster"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "2.2"

func main() {
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Aliases: []string{"V"}, Usage: "print the version"}
	app := newApp(run)
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if err := config.LoadGatewayConfig(c.String("config")); err != nil {
		return err
	}
	cfg := config.ActiveGatewayConfig
	if err := applyFlags(c, cfg); err != nil {
		return err
	}

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = logging.DefaultPath(logProgram, cfg.Controller)
	}
	logger, logFile, logErr := logging.New(logging.Options{Path: logPath, NoLog: cfg.NoLog, Debug: cfg.Debug})
	nolog := ""
	if cfg.NoLog {
		nolog = "nolog"
	}
	logger.Infof("STARTED %s on %s as %d timeout %d %s",
		c.App.Name, cfg.SerialDevice, cfg.Controller, cfg.ReceiveTimeoutSeconds, nolog)

	var link *remote.Link
	if !cfg.NoServer {
		logon := fmt.Sprintf("logon meter %s %d", version, cfg.Controller)
		link = remote.NewLink(cfg.ServerAddress, logon, logger, nil)
		if err := link.Connect(); err != nil {
			logger.Warnf("Cannot reach server: %v", err)
		}
		logger.AddHook(logging.NewRemoteHook(link, program))
		defer link.Close()
	}
	// Reported only now so the server hears about it too.
	if logErr != nil {
		logger.Warnf("%d could not open logfile %s: %v", cfg.Controller, logPath, logErr)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	port, err := port_reader.Open(cfg.SerialDriver, cfg.SerialDevice, cfg.Baudrate)
	if err != nil {
		logger.Fatalf("%d Failed to open %s: %v", cfg.Controller, cfg.SerialDevice, err)
	}
	defer port.Close()

	reader := port_reader.NewFrameReader(port, logger,
		time.Duration(cfg.GapMillis)*time.Millisecond,
		time.Duration(cfg.ByteTimeoutMillis)*time.Millisecond)
	sched := scheduler.New(
		time.Duration(cfg.IntervalSeconds)*time.Second,
		time.Duration(cfg.OffsetSeconds)*time.Second)
	state := gateway.NewContext(logger, logFile, sched, nil)

	var serverLink gateway.ServerLink
	if link != nil {
		serverLink = link
	}
	gw := gateway.New(state, reader, serverLink, logger, gateway.Options{
		Offsets:          frame.Offsets{Import: cfg.ImportOffset, Export: cfg.ExportOffset},
		SuppressChecksum: cfg.SuppressChecksum,
		SingleShot:       cfg.SingleShot,
		ReceiveTimeout:   time.Duration(cfg.ReceiveTimeoutSeconds) * time.Second,
		Retries:          cfg.SocketRetries,
		RetryDelay:       time.Duration(cfg.SocketRetryDelayMs) * time.Millisecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gw.Run(ctx); err != nil {
		logger.Errorf("Error reading %s: %v", cfg.SerialDevice, err)
		return cli.Exit("", 1)
	}
	return nil
}
