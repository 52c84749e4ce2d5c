package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fakturo/invoicestack/internal/models"
)

var (
	// currency marker before the number, e.g. "$1,250.00" or "USD 980"
	amountPrefixPattern = regexp.MustCompile(`(?i)([$€£¥]|USD|EUR|GBP|CNY|JPY|RMB)\s*([0-9][0-9.,]*[0-9]|[0-9])`)
	// currency marker after the number, e.g. "1.250,00 EUR" or "980元"
	amountSuffixPattern = regexp.MustCompile(`(?i)([0-9][0-9.,]*[0-9]|[0-9])\s*([$€£¥元]|USD|EUR|GBP|CNY|JPY|RMB)`)
	// labelled amount without any currency marker, e.g. "Amount Due: 1250.00"
	amountLabelPattern = regexp.MustCompile(`(?i)(?:amount\s*(?:due|payable)?|total(?:\s*(?:due|amount))?|balance\s*due|grand\s*total|金额|合计)\s*[:：]\s*([0-9][0-9.,]*[0-9]|[0-9])`)

	invoiceNumberPattern = regexp.MustCompile(`(?i)invoice\s*(?:number|no\.?|num|#)?\s*[:：#]?\s*([A-Za-z]{0,6}[-/]?[0-9][0-9A-Za-z/-]*)`)

	invoiceDatePattern = regexp.MustCompile(`(?i)(?:invoice\s+date|date\s+of\s+issue|issue\s+date|due\s+date|date)\s*[:：]\s*([0-9]{4}[-/.][0-9]{1,2}[-/.][0-9]{1,2}|[0-9]{1,2}[-/.][0-9]{1,2}[-/.][0-9]{4}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+[0-9]{1,2},?\s+[0-9]{4})`)

	vendorPattern = regexp.MustCompile(`(?im)^\s*(?:vendor|supplier|seller|billed\s+by|from)\s*[:：]\s*([^\r\n]{2,64})`)
)

// scanFields runs the pattern matchers over the combined subject and body
// text. Best effort only, a miss on any field is not an error.
func scanFields(subject, body string) models.JSONMap {
	fields := models.JSONMap{}
	text := subject + "\n" + body

	raw, currency := matchAmount(text)
	if raw != "" {
		fields[models.FieldAmountRaw] = raw
		if value, ok := parseAmount(raw); ok {
			fields[models.FieldAmount] = value
		}
		if currency != "" {
			fields[models.FieldCurrency] = currency
		}
	}

	if match := invoiceNumberPattern.FindStringSubmatch(text); match != nil {
		fields[models.FieldInvoiceNumber] = strings.TrimRight(match[1], "-/")
	}

	if match := invoiceDatePattern.FindStringSubmatch(text); match != nil {
		fields[models.FieldDate] = strings.TrimSpace(match[1])
	}

	if match := vendorPattern.FindStringSubmatch(body); match != nil {
		fields[models.FieldVendor] = strings.TrimSpace(match[1])
	}

	return fields
}

// matchAmount returns the raw monetary substring and the currency code when
// one of the three patterns hits. Prefix form wins over suffix form, the
// label-only form is the last resort.
func matchAmount(text string) (raw string, currency string) {
	if match := amountPrefixPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[0]), currencyCode(match[1])
	}
	if match := amountSuffixPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[0]), currencyCode(match[2])
	}
	if match := amountLabelPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1]), ""
	}
	return "", ""
}

// parseAmount turns a raw monetary string into a float. Both 1,250.00 and
// 1.250,00 separator conventions are understood, the raw string is kept by
// the caller either way.
func parseAmount(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.250,00 form
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			idx := strings.LastIndex(cleaned, ",")
			cleaned = strings.ReplaceAll(cleaned[:idx], ",", "") + "." + cleaned[idx+1:]
		} else {
			// 1,250.00 form
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 == 2 {
			// lone comma with two trailing digits reads as a decimal mark
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(cleaned, ".") == 1 && len(cleaned)-lastDot-1 == 3 && !strings.HasPrefix(cleaned, "0.") {
			// 1.250 reads as a thousands group, not as three decimals
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		} else if strings.Count(cleaned, ".") > 1 {
			idx := strings.LastIndex(cleaned, ".")
			cleaned = strings.ReplaceAll(cleaned[:idx], ".", "") + cleaned[idx:]
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func currencyCode(marker string) string {
	switch strings.ToUpper(strings.TrimSpace(marker)) {
	case "$", "USD":
		return "USD"
	case "€", "EUR":
		return "EUR"
	case "£", "GBP":
		return "GBP"
	case "¥", "元", "CNY", "RMB":
		return "CNY"
	case "JPY":
		return "JPY"
	default:
		return ""
	}
}

// HTMLToPlainText strips markup from an HTML body so the pattern matchers
// see the same text a reader would.
func HTMLToPlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	// Remove script and style elements
	doc.Find("script, style").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	// Get text content
	text := doc.Find("body").Text()

	// Trim spaces and replace multiple newlines with a single one
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n\n", "\n")

	return text, nil
}
