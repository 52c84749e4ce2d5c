package interfaces

import (
	"context"

	"github.com/fakturo/invoicestack/dto"
	"github.com/fakturo/invoicestack/internal/models"
)

// InvoiceExtractor turns a fetched message into zero or one invoice record.
// A message that is not an invoice returns errors.ErrNoInvoiceFound.
type InvoiceExtractor interface {
	Extract(ctx context.Context, message *dto.InboundMessage) (*models.Invoice, error)
}

// AttachmentExtractor is the extension seam for attachment parsing, selected
// by normalized MIME type. Unimplemented strategies return
// errors.ErrNotImplemented instead of faulting the pipeline.
type AttachmentExtractor interface {
	ContentTypes() []string
	Extract(ctx context.Context, filename string, contentType string, content []byte) (models.JSONMap, error)
}
