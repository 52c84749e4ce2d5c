package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/fakturo/invoicestack/interfaces"
	"github.com/fakturo/invoicestack/internal/enum"
	"github.com/fakturo/invoicestack/internal/models"
	"github.com/fakturo/invoicestack/internal/tracing"
)

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) interfaces.InvoiceRepository {
	return &invoiceRepository{
		db: db,
	}
}

// Create persists an invoice exactly once per message_id. A replayed message
// returns the existing row's ID with created=false.
func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) (string, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "invoiceRepository.Create")
	defer span.Finish()
	tracing.SetDefaultSqliteRepositorySpanTags(ctx, span)

	if invoice == nil || invoice.MessageID == "" {
		return "", false, ErrInvalidInput
	}

	invoice.MessageID = strings.Trim(invoice.MessageID, "<>")
	invoice.Status = enum.InvoiceStatusStored
	tracing.TagMessageId(span, invoice.MessageID)

	// Check if the invoice already exists before creating
	existingInvoice := &models.Invoice{}
	err := r.db.WithContext(ctx).
		Where("message_id = ?", invoice.MessageID).
		First(existingInvoice).Error

	if err == nil {
		span.SetTag("duplicate", true)
		return existingInvoice.ID, false, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tracing.TraceErr(span, err)
		return "", false, err
	}

	result := r.db.WithContext(ctx).Create(invoice)
	if result.Error != nil {
		// A concurrent run can slip past the pre-check, the unique index on
		// message_id rejects the second insert. Re-read and return the winner.
		raceErr := r.db.WithContext(ctx).
			Where("message_id = ?", invoice.MessageID).
			First(existingInvoice).Error
		if raceErr == nil {
			span.SetTag("duplicate", true)
			return existingInvoice.ID, false, nil
		}
		tracing.TraceErr(span, result.Error)
		return "", false, result.Error
	}

	return invoice.ID, true, nil
}

// GetByID retrieves an invoice by its ID
func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "invoiceRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultSqliteRepositorySpanTags(ctx, span)

	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &invoice, nil
}

// GetByMessageID retrieves an invoice by the source email's Message-ID header
func (r *invoiceRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Invoice, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "invoiceRepository.GetByMessageID")
	defer span.Finish()
	tracing.SetDefaultSqliteRepositorySpanTags(ctx, span)

	messageID = strings.Trim(messageID, "<>")

	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &invoice, nil
}

// UpdateStatus moves a stored row's status, used for the notify_failed mark.
// Rows are otherwise append-only.
func (r *invoiceRepository) UpdateStatus(ctx context.Context, id string, status enum.InvoiceStatus) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "invoiceRepository.UpdateStatus")
	defer span.Finish()
	tracing.SetDefaultSqliteRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	if id == "" {
		return ErrInvalidInput
	}

	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrInvoiceNotFound
	}

	return nil
}

func (r *invoiceRepository) Count(ctx context.Context) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "invoiceRepository.Count")
	defer span.Finish()
	tracing.SetDefaultSqliteRepositorySpanTags(ctx, span)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Invoice{}).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}
