// Package extract turns a rendered product page into a ProductRecord. Each
// field is read through an ordered chain of selector strategies; the page's
// JSON-LD block backs up whatever the rendered DOM did not expose.
package extract

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/lazcrawl/models"
)

// ErrContentMissing means the app shell never rendered, which usually means
// the marketplace served a block page instead of the product.
var ErrContentMissing = errors.New("root content marker missing")

// Options configures an Extractor.
type Options struct {
	// RootSelector must match for the page to count as rendered.
	RootSelector string
	// MinTitleLength is the rune count a DOM title has to exceed.
	MinTitleLength int
}

// DefaultOptions matches the storefront's current markup.
func DefaultOptions() Options {
	return Options{RootSelector: "#root", MinTitleLength: 10}
}

// Extractor applies the field strategies to page markup. It holds no state
// between calls and is safe for concurrent use.
type Extractor struct {
	opts  Options
	title []Strategy[string]
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.RootSelector == "" {
		opts.RootSelector = DefaultOptions().RootSelector
	}
	return &Extractor{
		opts: opts,
		title: []Strategy[string]{
			TextOf(".pdp-product-title", opts.MinTitleLength),
			TextOf("h1", opts.MinTitleLength),
			TextOf(".pdp-mod-product-badge-title", opts.MinTitleLength),
		},
	}
}

// Extract parses markup and fills every field it can. Missing fields stay
// empty; only an absent root marker fails the page. SourceURL, CrawledAt and
// timing fields are left to the caller.
func (e *Extractor) Extract(markup string) (*models.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	if doc.Find(e.opts.RootSelector).Length() == 0 {
		return nil, ErrContentMissing
	}

	ld, _ := parseStructured(doc)

	title, _ := FirstMatch(doc, e.title...)
	p := extractPrices(doc)

	rec := &models.ProductRecord{
		Title:            firstNonEmpty(title, ld.Name),
		Description:      firstNonEmpty(description(doc), ld.Description),
		SalePrice:        p.sale,
		RegularPrice:     firstNonEmpty(p.regular, structuredPrice(ld.Price)),
		DeliveryEstimate: cleanText(doc.Find(".delivery-option-item__time").First().Text()),
		ExternalID:       ld.SKU,
		InStock:          ld.InStock,
		ImageURL:         ld.ImageURL,
	}
	if rec.ImageURL != "" {
		rec.ImageCount = 1
	}
	return rec, nil
}

// description joins the product-detail paragraphs, dropping line breaks and
// "- " bullet markers.
func description(doc *goquery.Document) string {
	var parts []string
	doc.Find(".pdp-product-detail article.lzd-article p").Each(func(_ int, s *goquery.Selection) {
		text := strings.ReplaceAll(s.Text(), "\n", "")
		text = strings.TrimSpace(strings.ReplaceAll(text, "- ", ""))
		if text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, ", ")
}

// structuredPrice reads JSON-LD prices, which are plain decimals ("271043.00"),
// unlike the formatted amounts in the DOM.
func structuredPrice(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return strconv.FormatFloat(math.Round(f), 'f', 0, 64)
	}
	return NormalizePrice(s)
}
