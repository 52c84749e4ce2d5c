package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/fakturo/invoicestack/internal/enum"
	"github.com/fakturo/invoicestack/internal/utils"
)

// Field keys recognized inside the fields_json blob. The set is open ended,
// extraction writes whatever it finds, these are the keys other components read.
const (
	FieldAmount        = "amount"
	FieldAmountRaw     = "amount_raw"
	FieldCurrency      = "currency"
	FieldInvoiceNumber = "invoice_number"
	FieldVendor        = "vendor"
	FieldDate          = "date"
	FieldAttachments   = "attachments"
	FieldPdfLinks      = "pdf_links"
)

// Invoice represents one extracted invoice persisted from a mailbox message
type Invoice struct {
	ID         string             `gorm:"column:id;type:varchar(50);primaryKey"`
	MessageID  string             `gorm:"column:message_id;uniqueIndex;type:varchar(255);not null"`
	Sender     string             `gorm:"column:sender;type:varchar(255);index"`
	Subject    string             `gorm:"column:subject;type:varchar(500)"`
	ReceivedAt time.Time          `gorm:"column:received_at;type:timestamp;index"`
	Status     enum.InvoiceStatus `gorm:"column:status;type:varchar(30);index"`
	Fields     JSONMap            `gorm:"column:fields_json;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = utils.GenerateNanoIdWithPrefix("invoice", 21)
	}
	i.CreatedAt = utils.Now()
	return nil
}

func (i *Invoice) fieldString(key string) string {
	if i.Fields == nil {
		return ""
	}
	if value, ok := i.Fields[key].(string); ok {
		return value
	}
	return ""
}

func (i *Invoice) AmountRaw() string {
	return i.fieldString(FieldAmountRaw)
}

func (i *Invoice) Currency() string {
	return i.fieldString(FieldCurrency)
}

func (i *Invoice) InvoiceNumber() string {
	return i.fieldString(FieldInvoiceNumber)
}

func (i *Invoice) Vendor() string {
	return i.fieldString(FieldVendor)
}

// Amount returns the best-effort parsed amount. The raw string form is always
// kept under amount_raw, this accessor covers the parsed value only.
func (i *Invoice) Amount() (float64, bool) {
	if i.Fields == nil {
		return 0, false
	}
	if value, ok := i.Fields[FieldAmount].(float64); ok {
		return value, true
	}
	return 0, false
}
