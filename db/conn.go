// Package db opens the configured database and keeps the schema migrated
package db

import (
	"fmt"

	"bitwise74/face-auth-api/model"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New opens the database selected by db.driver. SQLite keeps single-host
// deployments simple, Postgres is there for anything bigger. Concurrent
// writes to the same user row are serialized by the database itself
func New() (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver := viper.GetString("db.driver"); driver {
	case "postgres":
		dialector = postgres.Open(viper.GetString("db.dsn"))
	case "sqlite":
		dialector = sqlite.Open(viper.GetString("db.dsn"))
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector)
	if err != nil {
		return nil, fmt.Errorf("failed to open database, %w", err)
	}

	if err := db.AutoMigrate(model.User{}); err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
