package config

// GatewayConfig is the meter gateway's file configuration. Durations are
// whole seconds or milliseconds as named, matching the command line.
type GatewayConfig struct {
	SerialDevice string `toml:"serial_device"`
	// termios (github.com/jacobsa/go-serial) or bugst (go.bug.st/serial)
	SerialDriver string `toml:"serial_driver"`
	Baudrate     uint   `toml:"baudrate"`

	ServerAddress string `toml:"server_address"`
	NoServer      bool   `toml:"no_server"`
	Controller    int    `toml:"controller"`

	IntervalSeconds       int `toml:"interval_seconds"`
	OffsetSeconds         int `toml:"offset_seconds"`
	ReceiveTimeoutSeconds int `toml:"receive_timeout_seconds"`
	GapMillis             int `toml:"gap_millis"`
	ByteTimeoutMillis     int `toml:"byte_timeout_millis"`

	ImportOffset     float64 `toml:"import_offset"`
	ExportOffset     float64 `toml:"export_offset"`
	SuppressChecksum int     `toml:"suppress_checksum"`
	SingleShot       bool    `toml:"single_shot"`

	Debug   int    `toml:"debug"`
	LogFile string `toml:"log_file"`
	NoLog   bool   `toml:"no_log"`

	SocketRetries      int `toml:"socket_retries"`
	SocketRetryDelayMs int `toml:"socket_retry_delay_ms"`
}

type MonitorConfig struct {
	GatewayListen string `toml:"gateway_listen"`
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
}

type CollectorConfig struct {
	MonitorHost string `toml:"monitor_host"`
	TLSEnabled  bool   `toml:"tls_enabled"`
}
