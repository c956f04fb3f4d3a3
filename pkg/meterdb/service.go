// MeterDB holds the readings relayed from Elster gateways. It is written
// by meter_collector only; the gateway itself keeps nothing on disk.
package meterdb

import (
	"database/sql"
	"embed"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/elster_gateway/pkg/pathing"

	_ "modernc.org/sqlite"
)

var db *sql.DB

//go:embed migrations/*.sql
var migrationFS embed.FS

// InitializeDatabase must be called once on startup. An empty path uses
// the default data directory.
func InitializeDatabase(path string, log logrus.FieldLogger) error {
	if path == "" {
		if err := pathing.EnsureDataDir(); err != nil {
			return err
		}
		path = pathing.GetMeterDbPath()
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	// Create DB before migrations
	if err := conn.Ping(); err != nil {
		conn.Close()
		return errors.Wrapf(err, "ping %s", path)
	}
	// One writer, and modernc's driver serialises anyway.
	conn.SetMaxOpenConns(1)

	// Apply migrations
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		conn,
		migrationFS,
		"migrations",
	)
	log.Infof("Meter database ready at %s", path)
	db = conn
	return nil
}

func GetDB() *sql.DB {
	return db
}

func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}
