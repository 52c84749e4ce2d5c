package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/fakturo/invoicestack/config"
	"github.com/fakturo/invoicestack/dto"
	"github.com/fakturo/invoicestack/interfaces"
	er "github.com/fakturo/invoicestack/internal/errors"
	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/models"
	"github.com/fakturo/invoicestack/internal/tracing"
)

type wechatNotifier struct {
	config *config.WebhookConfig
	log    logger.Logger
}

func NewWeChatNotifier(cfg *config.WebhookConfig, log logger.Logger) interfaces.Notifier {
	return &wechatNotifier{
		config: cfg,
		log:    log,
	}
}

// NotifyInvoice posts a short text about one stored invoice. Without a
// configured webhook URL this is a silent success.
func (s *wechatNotifier) NotifyInvoice(ctx context.Context, invoice *models.Invoice) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "wechatNotifier.NotifyInvoice")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMessageId(span, invoice.MessageID)

	if s.config.WeChatWebhookURL == "" {
		span.LogFields(tracingLog.String("result", "skipped, webhook not configured"))
		return nil
	}

	return s.post(ctx, span, invoiceContent(invoice))
}

// NotifyRunSummary posts the per-run counters after a batch that processed at
// least one message.
func (s *wechatNotifier) NotifyRunSummary(ctx context.Context, summary *dto.RunSummary) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "wechatNotifier.NotifyRunSummary")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if s.config.WeChatWebhookURL == "" {
		span.LogFields(tracingLog.String("result", "skipped, webhook not configured"))
		return nil
	}

	return s.post(ctx, span, summaryContent(summary))
}

func (s *wechatNotifier) post(ctx context.Context, span opentracing.Span, content string) error {
	payload, err := json.Marshal(dto.NewWeChatTextMessage(content))
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.WeChatWebhookURL, bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req = tracing.InjectSpanContextIntoHTTPRequest(req, span)

	client := &http.Client{
		Timeout: s.config.Timeout,
	}
	resp, err := client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(er.ErrNotifyFailed, "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = errors.Wrapf(er.ErrNotifyFailed, "request failed with status code %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return err
	}

	// the robot API reports failures with HTTP 200 and a non zero errcode
	var robotResponse dto.WeChatResponse
	if jsonErr := json.Unmarshal(body, &robotResponse); jsonErr == nil && robotResponse.ErrCode != 0 {
		err = errors.Wrapf(er.ErrNotifyFailed, "webhook rejected message: errcode %d %s", robotResponse.ErrCode, robotResponse.ErrMsg)
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

func invoiceContent(invoice *models.Invoice) string {
	var b strings.Builder
	b.WriteString("New invoice received\n")
	b.WriteString("Sender: " + invoice.Sender + "\n")
	b.WriteString("Subject: " + invoice.Subject)

	if amount, ok := invoice.Amount(); ok {
		fmt.Fprintf(&b, "\nAmount: %.2f", amount)
		if currency := invoice.Currency(); currency != "" {
			b.WriteString(" " + currency)
		}
		if raw := invoice.AmountRaw(); raw != "" {
			b.WriteString(" (" + raw + ")")
		}
	} else if raw := invoice.AmountRaw(); raw != "" {
		b.WriteString("\nAmount: " + raw)
	}

	if number := invoice.InvoiceNumber(); number != "" {
		b.WriteString("\nInvoice No: " + number)
	}
	if vendor := invoice.Vendor(); vendor != "" {
		b.WriteString("\nVendor: " + vendor)
	}

	return b.String()
}

func summaryContent(summary *dto.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice run %s finished\n", summary.RunID)
	fmt.Fprintf(&b, "Processed %d message(s): %d stored, %d duplicate(s), %d skipped\n",
		summary.Total, summary.Stored, summary.Duplicates, summary.Skipped)
	fmt.Fprintf(&b, "Failures: %d fetch, %d extraction, %d store, %d notify",
		summary.FetchFailed, summary.ExtractionFailed, summary.StoreFailed, summary.NotifyFailed)
	return b.String()
}
