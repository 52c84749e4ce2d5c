package extractor

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fakturo/invoicestack/interfaces"
	er "github.com/fakturo/invoicestack/internal/errors"
	"github.com/fakturo/invoicestack/internal/models"
	"github.com/fakturo/invoicestack/internal/utils"
)

// StrategyRegistry resolves the attachment strategy for a MIME type. Types
// without a registered strategy fall through to a default that declines.
type StrategyRegistry struct {
	strategies map[string]interfaces.AttachmentExtractor
	fallback   interfaces.AttachmentExtractor
}

func NewStrategyRegistry(strategies ...interfaces.AttachmentExtractor) *StrategyRegistry {
	registry := &StrategyRegistry{
		strategies: make(map[string]interfaces.AttachmentExtractor),
		fallback:   &defaultExtractor{},
	}
	for _, strategy := range strategies {
		registry.Register(strategy)
	}
	return registry
}

func (r *StrategyRegistry) Register(strategy interfaces.AttachmentExtractor) {
	for _, contentType := range strategy.ContentTypes() {
		r.strategies[utils.NormalizeContentType(contentType)] = strategy
	}
}

func (r *StrategyRegistry) Resolve(contentType string) interfaces.AttachmentExtractor {
	if strategy, ok := r.strategies[utils.NormalizeContentType(contentType)]; ok {
		return strategy
	}
	return r.fallback
}

// pdfExtractor is the application/pdf strategy. Actual PDF parsing is not
// wired up yet, every call reports ErrNotImplemented so the message stays
// unread and gets retried once a parser lands.
type pdfExtractor struct{}

func NewPdfExtractor() interfaces.AttachmentExtractor {
	return &pdfExtractor{}
}

func (e *pdfExtractor) ContentTypes() []string {
	return []string{"application/pdf"}
}

func (e *pdfExtractor) Extract(ctx context.Context, filename string, contentType string, content []byte) (models.JSONMap, error) {
	return nil, errors.Wrapf(er.ErrNotImplemented, "pdf extraction for %s (%d bytes)", filename, len(content))
}

// defaultExtractor answers for every content type without a dedicated
// strategy.
type defaultExtractor struct{}

func (e *defaultExtractor) ContentTypes() []string {
	return nil
}

func (e *defaultExtractor) Extract(ctx context.Context, filename string, contentType string, content []byte) (models.JSONMap, error) {
	return nil, errors.Wrapf(er.ErrNotImplemented, "no extractor registered for %s (%s)", filename, contentType)
}
