package errors

import "github.com/pkg/errors"

var (
	// fatal errors, abort the whole run
	ErrConnectionFailed = errors.New("mailbox connection failed")
	ErrDatabaseFailed   = errors.New("database unavailable")

	// per-message errors, skip the message and continue
	ErrMessageUnavailable = errors.New("message unavailable")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrNotImplemented     = errors.New("extraction not implemented for this content type")
	ErrStoreFailed        = errors.New("invoice store failed")

	// not an error, the message is not an invoice
	ErrNoInvoiceFound = errors.New("no invoice found")

	// best-effort side effects, log only
	ErrNotifyFailed  = errors.New("notification delivery failed")
	ErrPublishFailed = errors.New("event publish failed")
)
