package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/utils"
)

const (
	MAX_PDF_LINKS         = 5
	MAX_PDF_DOWNLOAD_SIZE = 10 * 1024 * 1024
	DOWNLOAD_TIMEOUT      = 30 * time.Second
)

var pdfLinkPattern = regexp.MustCompile(`https?://[^\s'"]+\.pdf(?:\?[^\s'"]*)?`)

// LinkHarvester finds pdf links referenced by an HTML body and downloads
// them so the attachment strategies can run over linked documents too.
type LinkHarvester struct {
	log        logger.Logger
	httpClient *http.Client
}

func NewLinkHarvester(log logger.Logger) *LinkHarvester {
	return &LinkHarvester{
		log: log,
		httpClient: &http.Client{
			Timeout: DOWNLOAD_TIMEOUT,
		},
	}
}

// HarvestPDFLinks collects pdf URLs from anchor hrefs first, then sweeps the
// readable text for links pasted outside anchors. Capped so a link farm
// cannot stall the batch.
func (h *LinkHarvester) HarvestPDFLinks(html string) []string {
	var links []string

	text := html
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		doc.Find("a[href]").Each(func(i int, el *goquery.Selection) {
			href, ok := el.Attr("href")
			if ok && isPdfLink(href) {
				links = append(links, href)
			}
		})
		text = doc.Text()
	}

	links = append(links, pdfLinkPattern.FindAllString(text, -1)...)

	links = utils.UniqueStrings(links)
	if len(links) > MAX_PDF_LINKS {
		links = links[:MAX_PDF_LINKS]
	}

	return links
}

// Download fetches one harvested link with a size-bounded read.
func (h *LinkHarvester) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed with status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MAX_PDF_DOWNLOAD_SIZE))
	if err != nil {
		return nil, errors.Wrap(err, "unable to read response body")
	}

	return data, nil
}

func isPdfLink(href string) bool {
	lowered := strings.ToLower(href)
	if !strings.HasPrefix(lowered, "http://") && !strings.HasPrefix(lowered, "https://") {
		return false
	}
	if idx := strings.IndexByte(lowered, '?'); idx >= 0 {
		lowered = lowered[:idx]
	}
	return strings.HasSuffix(lowered, ".pdf")
}
