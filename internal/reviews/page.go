package reviews

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// providerSuffixRe matches the dash-separated "Яндекс Карты" suffix the
// provider appends to page titles.
var providerSuffixRe = regexp.MustCompile(`(?i)\s*—\s*Яндекс.*$`)

// Page is a rendered review page reduced to what the sync needs.
type Page struct {
	HTML             string
	Title            *string
	PhotoURL         *string
	StructuredBlocks []string
}

// ParsePage reads the title, photo and JSON-LD blocks out of rendered HTML.
func ParsePage(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	p := &Page{HTML: html}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		p.StructuredBlocks = append(p.StructuredBlocks, s.Text())
	})

	title, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	if strings.TrimSpace(title) == "" {
		title = doc.Find("title").First().Text()
	}
	title = strings.TrimSpace(providerSuffixRe.ReplaceAllString(title, ""))
	if title != "" {
		p.Title = &title
	}

	if img, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && strings.HasPrefix(img, "http") {
		p.PhotoURL = &img
	}

	return p, nil
}
