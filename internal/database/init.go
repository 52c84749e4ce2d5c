package database

import (
	"gorm.io/gorm"

	"github.com/pkg/errors"
)

func InitInvoiceDatabase(dbConfig *DatabaseConfig) (*gorm.DB, error) {
	db, err := NewConnection(dbConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the invoice database")
	}

	return db, nil
}
