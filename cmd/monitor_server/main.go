// Monitor server terminates gateway connections and serves the latest
// readings over HTTP and websocket.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/NotCoffee418/elster_gateway/pkg/config"
	"github.com/NotCoffee418/elster_gateway/pkg/logging"
	"github.com/NotCoffee418/elster_gateway/pkg/monitor"
)

func main() {
	app := &cli.App{
		Name:  "monitor_server",
		Usage: "accept Elster gateways and relay their readings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log every reading"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if err := config.LoadMonitorConfig(c.String("config")); err != nil {
		return err
	}
	cfg := config.ActiveMonitorConfig

	debug := 0
	if c.Bool("debug") {
		debug = 1
	}
	logger, _, _ := logging.New(logging.Options{NoLog: true, Debug: debug})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.GatewayListen)
	if err != nil {
		return err
	}
	server := monitor.NewServer(logger)
	go func() {
		if err := server.ServeGateways(ctx, ln); err != nil {
			logger.Fatalf("Gateway listener failed: %v", err)
		}
	}()
	logger.Infof("Accepting gateways on %s", cfg.GatewayListen)

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	httpServer := &http.Server{Addr: listener, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	logger.Infof("Starting Elster Gateway Monitor on %s", listener)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
