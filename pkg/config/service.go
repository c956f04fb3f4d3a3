package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/NotCoffee418/elster_gateway/pkg/pathing"
)

var (
	ActiveGatewayConfig   *GatewayConfig
	ActiveMonitorConfig   *MonitorConfig
	ActiveCollectorConfig *CollectorConfig
)

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		SerialDevice:          "/dev/ttyUSB0",
		SerialDriver:          "termios",
		Baudrate:              2400,
		ServerAddress:         "localhost:10010",
		Controller:            1,
		IntervalSeconds:       300,
		ReceiveTimeoutSeconds: 90,
		GapMillis:             100,
		ByteTimeoutMillis:     500,
		SocketRetries:         3,
		SocketRetryDelayMs:    1000,
	}
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		GatewayListen: "0.0.0.0:10010",
		ListenAddress: "0.0.0.0",
		ListenPort:    9039,
	}
}

func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		MonitorHost: "localhost:9039",
	}
}

// LoadGatewayConfig reads path, or the default location when path is
// empty, writing a default file first if none exists.
func LoadGatewayConfig(path string) error {
	if path == "" {
		path = filepath.Join(pathing.GetConfigDir(), "elster_gateway.toml")
	}
	cfg, err := loadOrCreate(path, DefaultGatewayConfig())
	if err != nil {
		return err
	}
	ActiveGatewayConfig = cfg
	return nil
}

func LoadMonitorConfig(path string) error {
	if path == "" {
		path = filepath.Join(pathing.GetConfigDir(), "monitor_server.toml")
	}
	cfg, err := loadOrCreate(path, DefaultMonitorConfig())
	if err != nil {
		return err
	}
	ActiveMonitorConfig = cfg
	return nil
}

func LoadCollectorConfig(path string) error {
	if path == "" {
		path = filepath.Join(pathing.GetConfigDir(), "meter_collector.toml")
	}
	cfg, err := loadOrCreate(path, DefaultCollectorConfig())
	if err != nil {
		return err
	}
	ActiveCollectorConfig = cfg
	return nil
}

// loadOrCreate decodes path over def. A missing file is created with def.
// Keys absent from an existing file keep their default values.
func loadOrCreate[T any](path string, def T) (*T, error) {
	cfg := def
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrapf(err, "create config dir for %s", path)
		}
		cfgFile, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrapf(err, "create %s", path)
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return nil, errors.Wrapf(err, "write default %s", path)
		}
		return &cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &cfg, nil
}
