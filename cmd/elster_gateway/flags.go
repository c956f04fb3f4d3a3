package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/NotCoffee418/elster_gateway/pkg/config"
)

// newApp builds the command line. Short options combine, so -dd is -d -d.
func newApp(action cli.ActionFunc) *cli.App {
	return &cli.App{
		Name:                   "elster_gateway",
		Usage:                  "forward Elster meter readings to the monitoring server",
		Version:                version,
		ArgsUsage:              "[serial device] [controller number]",
		Flags:                  flags(),
		UseShortOptionHandling: true,
		Action:                 action,
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (default /etc/elster_gateway/elster_gateway.toml)"},
		&cli.IntFlag{Name: "timeout", Aliases: []string{"t"}, Usage: "seconds without data before warning"},
		&cli.BoolFlag{Name: "nolog", Aliases: []string{"l"}, Usage: "do not write a log file"},
		&cli.BoolFlag{Name: "noserver", Aliases: []string{"s"}, Usage: "do not connect to the monitoring server"},
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "more diagnostics, repeat for trace", Count: new(int)},
		&cli.Float64Flag{Name: "import-offset", Aliases: []string{"o"}, Usage: "added to the import register"},
		&cli.Float64Flag{Name: "export-offset", Aliases: []string{"p"}, Usage: "subtracted from the export register"},
		&cli.IntFlag{Name: "interval", Aliases: []string{"i"}, Usage: "send interval in seconds (0 means 600)"},
		&cli.IntFlag{Name: "suppress", Aliases: []string{"m"}, Usage: "report every Nth checksum failure instead of each one"},
		&cli.BoolFlag{Name: "single", Aliases: []string{"S"}, Usage: "dump the first frame and exit"},
		&cli.StringFlag{Name: "server", Usage: "monitoring server host:port"},
		&cli.StringFlag{Name: "driver", Usage: "serial driver: termios or bugst"},
		&cli.UintFlag{Name: "baud", Usage: "serial baud rate"},
		&cli.IntFlag{Name: "offset", Usage: "send offset in seconds within the interval"},
		&cli.StringFlag{Name: "logfile", Usage: "log file path"},
	}
}

// applyFlags overrides cfg with every flag and argument given on the
// command line. Arguments are the serial device and controller number.
func applyFlags(c *cli.Context, cfg *config.GatewayConfig) error {
	if c.IsSet("timeout") {
		cfg.ReceiveTimeoutSeconds = c.Int("timeout")
	}
	if c.IsSet("nolog") {
		cfg.NoLog = c.Bool("nolog")
	}
	if c.IsSet("noserver") {
		cfg.NoServer = c.Bool("noserver")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Count("debug")
	}
	if c.IsSet("import-offset") {
		cfg.ImportOffset = c.Float64("import-offset")
	}
	if c.IsSet("export-offset") {
		cfg.ExportOffset = c.Float64("export-offset")
	}
	if c.IsSet("interval") {
		cfg.IntervalSeconds = c.Int("interval")
	}
	if c.IsSet("suppress") {
		cfg.SuppressChecksum = c.Int("suppress")
	}
	if c.IsSet("single") {
		cfg.SingleShot = c.Bool("single")
	}
	if c.IsSet("server") {
		cfg.ServerAddress = c.String("server")
	}
	if c.IsSet("driver") {
		cfg.SerialDriver = c.String("driver")
	}
	if c.IsSet("baud") {
		cfg.Baudrate = c.Uint("baud")
	}
	if c.IsSet("offset") {
		cfg.OffsetSeconds = c.Int("offset")
	}
	if c.IsSet("logfile") {
		cfg.LogFile = c.String("logfile")
	}

	if c.NArg() > 0 {
		cfg.SerialDevice = c.Args().Get(0)
	}
	if c.NArg() > 1 {
		n, err := strconv.Atoi(c.Args().Get(1))
		if err != nil {
			return errors.Wrapf(err, "controller number %q", c.Args().Get(1))
		}
		cfg.Controller = n
	}
	if cfg.SuppressChecksum < 0 {
		return errors.Errorf("suppress must not be negative, got %d", cfg.SuppressChecksum)
	}
	return nil
}
