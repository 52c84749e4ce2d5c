package database

import (
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DatabaseConfig struct {
	DBPath string
	LogSQL bool
}

func NewConnection(dbConfig *DatabaseConfig) (*gorm.DB, error) {
	validateConfig(dbConfig)

	logMode := logger.Default.LogMode(logger.Warn)
	if dbConfig.LogSQL {
		logMode = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(sqlite.Open(dbConfig.DBPath), &gorm.Config{
		Logger: logMode,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// SQLite takes a file-level write lock, a single open connection avoids
	// busy errors without a retry loop
	sqlDB.SetMaxOpenConns(1)

	// SetConnMaxLifetime sets the maximum amount of time a connection may be reused
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func validateConfig(config *DatabaseConfig) {
	switch {
	case config == nil:
		log.Fatalf("Database config is nil")
	case config.DBPath == "":
		log.Fatalf("Database path config is empty")
	}
}
