package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// structured holds the fallback values found in the page's JSON-LD block.
type structured struct {
	Name         string
	Description  string
	SKU          string
	ImageURL     string
	InStock      bool
	Price        string
	Availability string
}

// flexString decodes a JSON-LD value that may be a string, a number, an
// array (first element wins) or an object carrying "url". Anything else
// decodes to "" instead of failing the whole block.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	*f = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if json.Unmarshal(data, &s) == nil {
			*f = flexString(strings.TrimSpace(s))
		}
	case '[':
		var items []flexString
		if json.Unmarshal(data, &items) == nil {
			for _, it := range items {
				if it != "" {
					*f = it
					break
				}
			}
		}
	case '{':
		var obj struct {
			URL flexString `json:"url"`
		}
		if json.Unmarshal(data, &obj) == nil {
			*f = obj.URL
		}
	default:
		var n json.Number
		if json.Unmarshal(data, &n) == nil {
			*f = flexString(normalizeNumber(n))
		}
	}
	return nil
}

// normalizeNumber renders 271043.0 as "271043".
func normalizeNumber(n json.Number) string {
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}

type ldOffer struct {
	Availability flexString `json:"availability"`
	Price        flexString `json:"price"`
	LowPrice     flexString `json:"lowPrice"`
}

// ldOffers accepts a single offer object or an array of them.
type ldOffers []ldOffer

func (o *ldOffers) UnmarshalJSON(data []byte) error {
	*o = nil
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
	case data[0] == '[':
		var list []ldOffer
		if json.Unmarshal(data, &list) == nil {
			*o = list
		}
	case data[0] == '{':
		var one ldOffer
		if json.Unmarshal(data, &one) == nil {
			*o = ldOffers{one}
		}
	}
	return nil
}

type ldNode struct {
	Type        flexString        `json:"@type"`
	Name        flexString        `json:"name"`
	Description flexString        `json:"description"`
	SKU         flexString        `json:"sku"`
	Image       flexString        `json:"image"`
	Offers      ldOffers          `json:"offers"`
	Graph       []json.RawMessage `json:"@graph"`
}

// parseStructured decodes the page's JSON-LD blocks. The first node typed
// Product wins; failing that, the first object of the first decodable block
// is used. ok is false when no block decodes.
func parseStructured(doc *goquery.Document) (structured, bool) {
	var fallback *ldNode
	var product *ldNode

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.NewReplacer("\r", " ", "\n", " ").Replace(s.Text())
		nodes := decodeNodes([]byte(raw))
		for i := range nodes {
			if fallback == nil {
				fallback = &nodes[i]
			}
			if strings.EqualFold(string(nodes[i].Type), "Product") {
				product = &nodes[i]
				return false
			}
		}
		return true
	})

	node := product
	if node == nil {
		node = fallback
	}
	if node == nil {
		return structured{}, false
	}
	return node.toStructured(), true
}

// decodeNodes flattens a block that is an object, an array of objects, or
// an object carrying @graph.
func decodeNodes(data []byte) []ldNode {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] == '[' {
		var raws []json.RawMessage
		if json.Unmarshal(data, &raws) != nil {
			return nil
		}
		var out []ldNode
		for _, r := range raws {
			out = append(out, decodeNodes(r)...)
		}
		return out
	}

	var n ldNode
	if json.Unmarshal(data, &n) != nil {
		return nil
	}
	out := []ldNode{n}
	for _, g := range n.Graph {
		out = append(out, decodeNodes(g)...)
	}
	return out
}

func (n *ldNode) toStructured() structured {
	s := structured{
		Name:        string(n.Name),
		Description: string(n.Description),
		SKU:         string(n.SKU),
		ImageURL:    absoluteImage(string(n.Image)),
	}
	if len(n.Offers) > 0 {
		offer := n.Offers[0]
		s.Availability = string(offer.Availability)
		s.InStock = inStock(s.Availability)
		s.Price = firstNonEmpty(string(offer.Price), string(offer.LowPrice))
	}
	return s
}

// inStock maps schema.org availability to a boolean.
func inStock(availability string) bool {
	return strings.Contains(availability, "InStock") || strings.Contains(availability, "LimitedAvailability")
}

// absoluteImage prefixes protocol-relative image URLs with https.
func absoluteImage(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
