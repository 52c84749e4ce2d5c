package interfaces

import (
	"context"

	"github.com/fakturo/invoicestack/dto"
	"github.com/fakturo/invoicestack/internal/models"
)

// Notifier delivers best-effort webhook notifications. With no webhook URL
// configured every call is a silent no-op success.
type Notifier interface {
	NotifyInvoice(ctx context.Context, invoice *models.Invoice) error
	NotifyRunSummary(ctx context.Context, summary *dto.RunSummary) error
}
