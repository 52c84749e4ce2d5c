package interfaces

import (
	"context"

	"github.com/fakturo/invoicestack/internal/models"
)

type EventPublisher interface {
	PublishInvoiceStored(ctx context.Context, invoice *models.Invoice) error
	Close() error
}
