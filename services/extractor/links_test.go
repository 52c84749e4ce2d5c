package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakturo/invoicestack/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestIsPdfLink(t *testing.T) {
	tests := []struct {
		href     string
		expected bool
	}{
		{"https://billing.acme.com/invoices/inv-123.pdf", true},
		{"http://billing.acme.com/inv.pdf?token=abc", true},
		{"https://billing.acme.com/INV.PDF", true},
		{"https://billing.acme.com/invoices/inv-123", false},
		{"ftp://billing.acme.com/inv.pdf", false},
		{"/relative/inv.pdf", false},
		{"mailto:billing@acme.com", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, isPdfLink(tt.href), "isPdfLink(%q)", tt.href)
	}
}

func TestHarvestPDFLinks(t *testing.T) {
	h := NewLinkHarvester(getLogger())

	html := `<html><body>
		<a href="https://billing.acme.com/inv-1.pdf">Download</a>
		<a href="https://acme.com/terms">Terms</a>
		<p>Or copy this: https://billing.acme.com/inv-2.pdf?token=x</p>
	</body></html>`

	links := h.HarvestPDFLinks(html)

	assert.Len(t, links, 2)
	assert.Contains(t, links, "https://billing.acme.com/inv-1.pdf")
	assert.Contains(t, links, "https://billing.acme.com/inv-2.pdf?token=x")
}

func TestHarvestPDFLinks_DeduplicatesAndCaps(t *testing.T) {
	h := NewLinkHarvester(getLogger())

	html := ""
	for i := 0; i < 8; i++ {
		html += fmt.Sprintf(`<a href="https://acme.com/inv-%d.pdf">inv</a>`, i)
	}
	links := h.HarvestPDFLinks(html)

	assert.Len(t, links, MAX_PDF_LINKS)
}

func TestHarvestPDFLinks_NoLinks(t *testing.T) {
	h := NewLinkHarvester(getLogger())

	links := h.HarvestPDFLinks(`<html><body><p>No documents here.</p></body></html>`)

	assert.Empty(t, links)
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 test"))
	}))
	defer server.Close()

	h := NewLinkHarvester(getLogger())

	data, err := h.Download(context.Background(), server.URL+"/inv.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), data)
}

func TestDownload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h := NewLinkHarvester(getLogger())

	_, err := h.Download(context.Background(), server.URL+"/gone.pdf")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
