package imap

import (
	"bytes"
	"context"
	"io"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/fakturo/invoicestack/dto"
	er "github.com/fakturo/invoicestack/internal/errors"
	"github.com/fakturo/invoicestack/internal/tracing"
	"github.com/fakturo/invoicestack/internal/utils"
)

// Fetch pulls one message by UID. BODY.PEEK keeps the server from flagging
// the message \Seen, read state only changes through MarkRead.
func (s *IMAPService) Fetch(ctx context.Context, uid uint32) (*dto.InboundMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.Fetch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.Uint32("uid", uid))

	c, err := s.conn()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		"BODY.PEEK[]",
		imap.FetchUid,
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	c.Timeout = FETCH_TIMEOUT

	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var inbound *dto.InboundMessage
	for msg := range messages {
		if inbound != nil || msg.Envelope == nil {
			continue
		}
		inbound = buildInboundMessage(msg)
	}

	c.Timeout = 0

	if err := <-done; err != nil {
		if isConnectionError(err) {
			err = errors.Wrapf(er.ErrConnectionFailed, "fetch uid %d: %v", uid, err)
		} else {
			err = errors.Wrapf(er.ErrMessageUnavailable, "fetch uid %d: %v", uid, err)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	if inbound == nil {
		err := errors.Wrapf(er.ErrMessageUnavailable, "fetch uid %d: no envelope returned", uid)
		tracing.TraceErr(span, err)
		return nil, err
	}

	tracing.TagMessageId(span, inbound.MessageID)
	span.LogFields(tracingLog.Int("result.rawSize", len(inbound.Raw)))

	return inbound, nil
}

func buildInboundMessage(msg *imap.Message) *dto.InboundMessage {
	envelope := msg.Envelope

	inbound := &dto.InboundMessage{
		UID:     msg.Uid,
		Subject: envelope.Subject,
		Raw:     extractRawMessage(msg),
	}

	if !envelope.Date.IsZero() {
		inbound.ReceivedAt = envelope.Date.UTC()
	} else {
		inbound.ReceivedAt = utils.Now()
	}

	// Sender information
	if len(envelope.From) > 0 {
		sender := envelope.From[0]
		inbound.SenderName = sender.PersonalName
		inbound.Sender = sender.Address()
		syntaxValidation := mailvalidate.ValidateEmailSyntax(sender.Address())
		if syntaxValidation.IsValid {
			inbound.Sender = syntaxValidation.CleanEmail
		}
	}

	inbound.MessageID = utils.NormalizeMessageID(envelope.MessageId)
	if inbound.MessageID == "" {
		inbound.MessageID = utils.DeriveMessageID(inbound.Sender, inbound.Subject, inbound.ReceivedAt)
	}

	return inbound
}

// extractRawMessage returns the full message data from the fetch response
func extractRawMessage(msg *imap.Message) []byte {
	var fullMessageBuffer bytes.Buffer

	for section, literal := range msg.Body {
		if section.Peek {
			continue // Skip PEEK sections to avoid duplicates
		}

		// Check if this is the full message section
		if len(section.Path) == 0 && section.Specifier == imap.EntireSpecifier {
			data, err := io.ReadAll(literal)
			if err == nil {
				fullMessageBuffer.Write(data)
				break
			}
		}
	}

	return fullMessageBuffer.Bytes()
}
