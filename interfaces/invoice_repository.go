package interfaces

import (
	"context"

	"github.com/fakturo/invoicestack/internal/enum"
	"github.com/fakturo/invoicestack/internal/models"
)

type InvoiceRepository interface {
	// Create is idempotent on message_id: a replayed message returns the
	// existing row's ID with created=false and writes nothing.
	Create(ctx context.Context, invoice *models.Invoice) (id string, created bool, err error)
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.Invoice, error)
	UpdateStatus(ctx context.Context, id string, status enum.InvoiceStatus) error
	Count(ctx context.Context) (int64, error)
}
