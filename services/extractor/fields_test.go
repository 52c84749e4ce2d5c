package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakturo/invoicestack/internal/models"
)

func TestScanFields_AmountAndNumber(t *testing.T) {
	fields := scanFields("Invoice #123", "Amount Due: $1,250.00\nThank you for your business.")

	assert.Equal(t, "$1,250.00", fields[models.FieldAmountRaw])
	assert.Equal(t, 1250.00, fields[models.FieldAmount])
	assert.Equal(t, "USD", fields[models.FieldCurrency])
	assert.Equal(t, "123", fields[models.FieldInvoiceNumber])
}

func TestScanFields_EuropeanSeparators(t *testing.T) {
	fields := scanFields("Rechnung R-2025-44", "Gesamtbetrag: 1.250,00 EUR\nZahlbar innerhalb 14 Tagen.")

	assert.Equal(t, "1.250,00 EUR", fields[models.FieldAmountRaw])
	assert.Equal(t, 1250.00, fields[models.FieldAmount])
	assert.Equal(t, "EUR", fields[models.FieldCurrency])
}

func TestScanFields_ChineseMarkers(t *testing.T) {
	fields := scanFields("电子发票", "合计: 980元\n发票号码 Invoice No: 20250714")

	assert.Equal(t, "980元", fields[models.FieldAmountRaw])
	assert.Equal(t, 980.00, fields[models.FieldAmount])
	assert.Equal(t, "CNY", fields[models.FieldCurrency])
	assert.Equal(t, "20250714", fields[models.FieldInvoiceNumber])
}

func TestScanFields_LabelledAmountWithoutCurrency(t *testing.T) {
	fields := scanFields("Your receipt", "Total Due: 430.50")

	assert.Equal(t, "430.50", fields[models.FieldAmountRaw])
	assert.Equal(t, 430.50, fields[models.FieldAmount])
	assert.NotContains(t, fields, models.FieldCurrency)
}

func TestScanFields_DateAndVendor(t *testing.T) {
	body := "Vendor: Acme Gadgets Ltd\nInvoice Date: 2025-07-14\nTotal: $85.00"

	fields := scanFields("Invoice INV-55", body)

	assert.Equal(t, "2025-07-14", fields[models.FieldDate])
	assert.Equal(t, "Acme Gadgets Ltd", fields[models.FieldVendor])
	assert.Equal(t, "INV-55", fields[models.FieldInvoiceNumber])
}

func TestScanFields_VendorReadFromBodyOnly(t *testing.T) {
	// a "From:" in the subject line must not be mistaken for a vendor label
	fields := scanFields("From: someone", "Amount Due: $10.00")

	assert.NotContains(t, fields, models.FieldVendor)
}

func TestScanFields_NoInvoiceContent(t *testing.T) {
	fields := scanFields("Lunch tomorrow?", "Are we still on for lunch at noon?")

	assert.NotContains(t, fields, models.FieldAmountRaw)
	assert.NotContains(t, fields, models.FieldInvoiceNumber)
	assert.NotContains(t, fields, models.FieldDate)
}

func TestMatchAmount_PrefixWinsOverLabel(t *testing.T) {
	raw, currency := matchAmount("Total: 99.00 somewhere, but pay $1,250.00 now")

	assert.Equal(t, "$1,250.00", raw)
	assert.Equal(t, "USD", currency)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw      string
		expected float64
		ok       bool
	}{
		{"$1,250.00", 1250.00, true},
		{"1.250,00", 1250.00, true},
		{"12,50", 12.50, true},
		{"1,250", 1250, true},
		{"1.250", 1250, true},
		{"0.999", 0.999, true},
		{"45.99", 45.99, true},
		{"980", 980, true},
		{"980元", 980, true},
		{"", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		value, ok := parseAmount(tt.raw)
		assert.Equal(t, tt.ok, ok, "parseAmount(%q)", tt.raw)
		if tt.ok {
			assert.Equal(t, tt.expected, value, "parseAmount(%q)", tt.raw)
		}
	}
}

func TestCurrencyCode(t *testing.T) {
	assert.Equal(t, "USD", currencyCode("$"))
	assert.Equal(t, "EUR", currencyCode("eur"))
	assert.Equal(t, "GBP", currencyCode("£"))
	assert.Equal(t, "CNY", currencyCode("元"))
	assert.Equal(t, "CNY", currencyCode("RMB"))
	assert.Equal(t, "JPY", currencyCode("JPY"))
	assert.Equal(t, "", currencyCode("XYZ"))
}

func TestHTMLToPlainText(t *testing.T) {
	html := `<html><body><p>Amount Due: $42.00</p><script>var tracking = true;</script></body></html>`

	text, err := HTMLToPlainText(html)
	require.NoError(t, err)

	assert.Contains(t, text, "Amount Due: $42.00")
	assert.NotContains(t, text, "tracking")
}
