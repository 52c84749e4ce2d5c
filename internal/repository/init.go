package repository

import (
	"gorm.io/gorm"

	"github.com/fakturo/invoicestack/interfaces"
	"github.com/fakturo/invoicestack/internal/models"
)

type Repositories struct {
	InvoiceRepository interfaces.InvoiceRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		InvoiceRepository: NewInvoiceRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Invoice{},
	)
}
