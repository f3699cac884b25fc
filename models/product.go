package models

import "time"

// ProductRecord is one successfully crawled product page.
type ProductRecord struct {
	// SourceURL is the page the record was extracted from. It is the
	// record's identity within a batch.
	SourceURL string `json:"sourceUrl"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// RegularPrice and SalePrice are bare digit strings ("271043"), empty
	// when the page did not expose them.
	RegularPrice string `json:"regularPrice"`
	SalePrice    string `json:"salePrice"`

	DeliveryEstimate string `json:"deliveryEstimate"`

	// ExternalID is the marketplace SKU taken from structured data.
	ExternalID string `json:"externalId"`

	InStock bool `json:"inStock"`

	ImageURL string `json:"imageUrl"`

	// ImageCount is 1 when ImageURL is set, 0 otherwise.
	ImageCount int `json:"imageCount"`

	// CategoryLabel is only set when the product was reached through a category.
	CategoryLabel string `json:"categoryLabel,omitempty"`

	CrawledAt      time.Time `json:"crawledAt"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
}
