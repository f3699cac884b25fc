package models

// DefaultMaxProducts is used when a category does not specify a cap.
const DefaultMaxProducts = 50

// CategorySpec describes a category listing that expands into product URLs
// at crawl time.
type CategorySpec struct {
	Label       string `yaml:"name" json:"name"`
	ListingURL  string `yaml:"url" json:"url"`
	MaxProducts int    `yaml:"maxProducts" json:"maxProducts"`
}

// Cap returns MaxProducts, or DefaultMaxProducts when it is not positive.
func (c CategorySpec) Cap() int {
	if c.MaxProducts <= 0 {
		return DefaultMaxProducts
	}
	return c.MaxProducts
}
