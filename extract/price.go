package extract

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// currencyAmount matches a "271.043 ₫" style amount, including the
// no-break space the storefront puts before the symbol.
var currencyAmount = regexp.MustCompile(`[\d.,]+[\s\x{00A0}]*₫`)

// NormalizePrice strips currency symbols, thousands separators and
// whitespace, leaving the bare digits: "548.772 ₫" -> "548772".
func NormalizePrice(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

type prices struct {
	regular string
	sale    string
}

// containerPrices reads the dedicated price block: the struck-through
// origin price and the current price.
func containerPrices(doc *goquery.Document) prices {
	box := doc.Find(".pdp-product-price").First()
	if box.Length() == 0 {
		return prices{}
	}
	return prices{
		regular: NormalizePrice(box.Find(".origin-block span").First().Text()),
		sale:    NormalizePrice(box.Find(".pdp-price_type_normal").First().Text()),
	}
}

// scannedPrices looks for currency amounts in any element whose class
// mentions "price". The first distinct amount is the sale price, the second
// the regular price.
func scannedPrices(doc *goquery.Document) prices {
	var found []string
	doc.Find(`[class*="price"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, m := range currencyAmount.FindAllString(s.Text(), -1) {
			v := NormalizePrice(m)
			if v == "" || slices.Contains(found, v) {
				continue
			}
			found = append(found, v)
			if len(found) == 2 {
				return false
			}
		}
		return true
	})

	var p prices
	if len(found) > 0 {
		p.sale = found[0]
	}
	if len(found) > 1 {
		p.regular = found[1]
	}
	return p
}

func extractPrices(doc *goquery.Document) prices {
	if p := containerPrices(doc); p.regular != "" || p.sale != "" {
		return p
	}
	return scannedPrices(doc)
}
