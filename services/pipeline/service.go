package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/fakturo/invoicestack/dto"
	"github.com/fakturo/invoicestack/interfaces"
	"github.com/fakturo/invoicestack/internal/enum"
	er "github.com/fakturo/invoicestack/internal/errors"
	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/tracing"
	"github.com/fakturo/invoicestack/internal/utils"
)

type pipelineService struct {
	mailbox    interfaces.MailboxClient
	extractor  interfaces.InvoiceExtractor
	repository interfaces.InvoiceRepository
	notifier   interfaces.Notifier
	publisher  interfaces.EventPublisher
	log        logger.Logger
}

// NewPipelineService wires the batch orchestrator. The publisher is optional,
// a nil value disables event fanout without touching the rest of the flow.
func NewPipelineService(
	mailbox interfaces.MailboxClient,
	extractor interfaces.InvoiceExtractor,
	repository interfaces.InvoiceRepository,
	notifier interfaces.Notifier,
	publisher interfaces.EventPublisher,
	log logger.Logger,
) interfaces.Pipeline {
	return &pipelineService{
		mailbox:    mailbox,
		extractor:  extractor,
		repository: repository,
		notifier:   notifier,
		publisher:  publisher,
		log:        log,
	}
}

// Run processes every unread message once, strictly in sequence. Only
// connect and list failures surface as errors, everything per-message lands
// in the summary instead.
func (s *pipelineService) Run(ctx context.Context) (*dto.RunSummary, error) {
	runId := uuid.New().String()

	source := utils.GetSourceFromContext(ctx)
	if source == "" {
		source = "manual"
	}
	ctx = utils.WithRunContext(ctx, &utils.RunContext{RunId: runId, Source: source})

	span, ctx := opentracing.StartSpanFromContext(ctx, "pipelineService.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	summary := &dto.RunSummary{
		RunID:     runId,
		StartedAt: utils.Now(),
	}

	s.log.Infof("Starting invoice run %s", runId)

	err := s.mailbox.Connect(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer s.mailbox.Disconnect()

	uids, err := s.mailbox.ListUnread(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	runErrors := er.NewMultiErrors()

	for _, uid := range uids {
		connectionLost := s.processMessage(ctx, uid, summary, runErrors)
		if connectionLost {
			s.log.Errorf("Connection lost during run %s, %d message(s) left for the next run",
				runId, len(uids)-summary.Total)
			break
		}
	}

	summary.FinishedAt = utils.Now()

	if runErrors.HasErrors() {
		s.log.Warnf("Run %s had per-message failures: %s", runId, runErrors.Error())
	}
	s.log.Infof("Run %s finished: %s", runId, summary.String())

	if summary.Total > 0 {
		if notifyErr := s.notifier.NotifyRunSummary(ctx, summary); notifyErr != nil {
			s.log.Warnf("Failed to deliver run summary: %v", notifyErr)
		}
	}

	return summary, nil
}

// processMessage walks one message through fetch, extract, store, notify and
// mark-read. The returned flag reports a dead connection so the caller stops
// iterating instead of failing every remaining message.
func (s *pipelineService) processMessage(ctx context.Context, uid uint32, summary *dto.RunSummary, runErrors *er.MultiErrors) bool {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pipelineService.processMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.Uint32("uid", uid))

	messageKey := fmt.Sprintf("uid:%d", uid)

	message, err := s.mailbox.Fetch(ctx, uid)
	if err != nil {
		tracing.TraceErr(span, err)
		summary.Record(enum.OutcomeFetchFailed)
		runErrors.Add(messageKey, "fetch", err)
		if errors.Is(err, er.ErrConnectionFailed) {
			return true
		}
		s.log.Warnf("Skipping message %s: %v", messageKey, err)
		return false
	}

	messageKey = message.MessageID
	tracing.TagMessageId(span, message.MessageID)

	invoice, err := s.extractor.Extract(ctx, message)
	if err != nil {
		if errors.Is(err, er.ErrNoInvoiceFound) {
			summary.Record(enum.OutcomeSkipped)
			s.log.Debugf("No invoice in message %s from %s, leaving unread", message.MessageID, message.Sender)
			return false
		}
		tracing.TraceErr(span, err)
		summary.Record(enum.OutcomeExtractionFailed)
		runErrors.Add(messageKey, "extract", err)
		s.log.Warnf("Extraction failed for message %s: %v", message.MessageID, err)
		return false
	}

	invoiceId, created, err := s.repository.Create(ctx, invoice)
	if err != nil {
		tracing.TraceErr(span, err)
		summary.Record(enum.OutcomeStoreFailed)
		runErrors.Add(messageKey, "store", errors.Wrapf(er.ErrStoreFailed, "%v", err))
		s.log.Errorf("Failed to store invoice for message %s: %v", message.MessageID, err)
		return false
	}

	if created {
		summary.Record(enum.OutcomeStored)
		s.log.Infof("Stored invoice %s for message %s from %s", invoiceId, message.MessageID, message.Sender)

		if notifyErr := s.notifier.NotifyInvoice(ctx, invoice); notifyErr != nil {
			summary.NotifyFailed++
			s.log.Warnf("Failed to notify invoice %s: %v", invoiceId, notifyErr)
			if updateErr := s.repository.UpdateStatus(ctx, invoiceId, enum.InvoiceStatusNotifyFailed); updateErr != nil {
				s.log.Errorf("Failed to flag invoice %s as notify_failed: %v", invoiceId, updateErr)
			}
		}

		if s.publisher != nil {
			if publishErr := s.publisher.PublishInvoiceStored(ctx, invoice); publishErr != nil {
				s.log.Warnf("Failed to publish stored event for invoice %s: %v", invoiceId, publishErr)
			}
		}
	} else {
		summary.Record(enum.OutcomeDuplicate)
		s.log.Infof("Message %s already stored as invoice %s", message.MessageID, invoiceId)
	}

	// the row is durable either way, now the message may leave the unread set
	if markErr := s.mailbox.MarkRead(ctx, uid); markErr != nil {
		summary.MarkReadFailed++
		s.log.Warnf("Failed to mark message %s read, next run will deduplicate: %v", message.MessageID, markErr)
	} else {
		summary.MarkedRead++
	}

	return false
}
