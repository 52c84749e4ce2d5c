package interfaces

import (
	"context"

	"github.com/fakturo/invoicestack/dto"
)

// Pipeline runs one batch over the mailbox. The returned error is setup-class
// only, per-message failures are folded into the summary.
type Pipeline interface {
	Run(ctx context.Context) (*dto.RunSummary, error)
}
