package pathing

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// EnsureDataDir creates the data directory if it is missing. Only the
// collector needs it; the gateway keeps no files besides its log.
func EnsureDataDir() error {
	dir := GetDataDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return nil
}

func GetMeterDbPath() string {
	return filepath.Join(GetDataDir(), "elster-meter.db")
}

func GetDataDir() string {
	return "/var/lib/elster_gateway"
}

func GetConfigDir() string {
	return "/etc/elster_gateway"
}
