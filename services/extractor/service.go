package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/fakturo/invoicestack/dto"
	"github.com/fakturo/invoicestack/interfaces"
	"github.com/fakturo/invoicestack/internal/enum"
	er "github.com/fakturo/invoicestack/internal/errors"
	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/models"
	"github.com/fakturo/invoicestack/internal/tracing"
	"github.com/fakturo/invoicestack/internal/utils"
)

type invoiceExtractor struct {
	log      logger.Logger
	registry *StrategyRegistry
	links    *LinkHarvester
}

func NewInvoiceExtractor(log logger.Logger, registry *StrategyRegistry, links *LinkHarvester) interfaces.InvoiceExtractor {
	return &invoiceExtractor{
		log:      log,
		registry: registry,
		links:    links,
	}
}

// Extract builds an invoice record from a raw message. Body fields win over
// whatever the attachment strategies produce, a strategy failure only decides
// the outcome when the body yielded nothing.
func (e *invoiceExtractor) Extract(ctx context.Context, message *dto.InboundMessage) (*models.Invoice, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "invoiceExtractor.Extract")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMessageId(span, message.MessageID)

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(message.Raw))
	if err != nil {
		err = errors.Wrapf(er.ErrExtractionFailed, "parse message %s: %v", message.MessageID, err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	bodyText := envelope.Text
	if bodyText == "" && envelope.HTML != "" {
		bodyText, err = HTMLToPlainText(envelope.HTML)
		if err != nil {
			e.log.Warnf("Failed to flatten HTML body of %s: %v", message.MessageID, err)
			bodyText = ""
		}
	}

	fields := scanFields(message.Subject, bodyText)

	attachmentFields, attachmentNames, attachmentErr := e.processAttachments(ctx, envelope)
	linkFields, pdfLinks, linkErr := e.processPdfLinks(ctx, envelope.HTML)

	// strategies never override what the body scan found
	mergeMissing(fields, attachmentFields)
	mergeMissing(fields, linkFields)

	_, hasAmount := fields[models.FieldAmountRaw]
	_, hasNumber := fields[models.FieldInvoiceNumber]
	if !hasAmount && !hasNumber {
		strategyErr := attachmentErr
		if strategyErr == nil {
			strategyErr = linkErr
		}
		if strategyErr != nil {
			tracing.TraceErr(span, strategyErr)
			return nil, strategyErr
		}
		return nil, er.ErrNoInvoiceFound
	}

	if len(attachmentNames) > 0 {
		fields[models.FieldAttachments] = attachmentNames
	}
	if len(pdfLinks) > 0 {
		fields[models.FieldPdfLinks] = pdfLinks
	}
	if _, ok := fields[models.FieldVendor]; !ok {
		if vendor := vendorFromSender(message); vendor != "" {
			fields[models.FieldVendor] = vendor
		}
	}

	invoice := &models.Invoice{
		MessageID:  message.MessageID,
		Sender:     message.Sender,
		Subject:    message.Subject,
		ReceivedAt: message.ReceivedAt,
		Status:     enum.InvoiceStatusExtracted,
		Fields:     fields,
	}

	tracing.LogObjectAsJson(span, "fields", fields)

	return invoice, nil
}

// processAttachments routes every named part through its strategy. The first
// strategy error is kept, the loop keeps going so all names get recorded.
func (e *invoiceExtractor) processAttachments(ctx context.Context, envelope *enmime.Envelope) (models.JSONMap, []string, error) {
	parts := make([]*enmime.Part, 0, len(envelope.Attachments)+len(envelope.Inlines))
	parts = append(parts, envelope.Attachments...)
	for _, inline := range envelope.Inlines {
		if inline.FileName != "" {
			parts = append(parts, inline)
		}
	}

	if len(parts) == 0 {
		return nil, nil, nil
	}

	merged := models.JSONMap{}
	names := make([]string, 0, len(parts))
	var firstErr error

	for _, part := range parts {
		name := attachmentName(part)
		names = append(names, name)

		strategy := e.registry.Resolve(part.ContentType)
		extracted, err := strategy.Extract(ctx, part.FileName, part.ContentType, part.Content)
		if err != nil {
			e.log.Warnf("Attachment %s not extracted: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for key, value := range extracted {
			merged[key] = value
		}
	}

	return merged, names, firstErr
}

// processPdfLinks downloads documents linked from the HTML body and runs them
// through the pdf strategy. A dead link counts as an extraction failure so
// the message stays unread for the next run.
func (e *invoiceExtractor) processPdfLinks(ctx context.Context, html string) (models.JSONMap, []string, error) {
	if html == "" {
		return nil, nil, nil
	}

	links := e.links.HarvestPDFLinks(html)
	if len(links) == 0 {
		return nil, nil, nil
	}

	merged := models.JSONMap{}
	var firstErr error

	for _, link := range links {
		data, err := e.links.Download(ctx, link)
		if err != nil {
			e.log.Warnf("Failed to download %s: %v", link, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(er.ErrExtractionFailed, "download %s: %v", link, err)
			}
			continue
		}

		extracted, err := e.registry.Resolve("application/pdf").Extract(ctx, fileNameFromURL(link), "application/pdf", data)
		if err != nil {
			e.log.Warnf("Linked document %s not extracted: %v", link, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for key, value := range extracted {
			merged[key] = value
		}
	}

	return merged, links, firstErr
}

func mergeMissing(fields models.JSONMap, extra models.JSONMap) {
	for key, value := range extra {
		if _, ok := fields[key]; !ok {
			fields[key] = value
		}
	}
}

func attachmentName(part *enmime.Part) string {
	if part.FileName != "" {
		return part.FileName
	}
	return "attachment." + utils.GetFileExtensionFromContentType(part.ContentType)
}

func fileNameFromURL(url string) string {
	trimmed := url
	if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return trimmed
}

func vendorFromSender(message *dto.InboundMessage) string {
	if message.SenderName != "" {
		return message.SenderName
	}
	return utils.ExtractDomainFromEmail(message.Sender)
}
