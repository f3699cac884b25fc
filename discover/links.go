package discover

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cardSelectors match product card containers used by listing layouts. They
// run after the plain product-anchor selector.
var cardSelectors = []string{
	".Bm3ON",
	`[data-tracking="product-card"]`,
	".qmXQo",
}

// NormalizeURL resolves href against origin and drops the query string and
// fragment. Protocol-relative links get https, site-relative links get the
// origin, and bare relative paths are joined to the origin root.
func NormalizeURL(href, origin string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	origin = strings.TrimRight(origin, "/")

	switch {
	case strings.HasPrefix(href, "//"):
		href = "https:" + href
	case strings.HasPrefix(href, "/"):
		href = origin + href
	case !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://"):
		href = origin + "/" + href
	}
	return canonical(href)
}

// canonical strips the query and fragment.
func canonical(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// isProductLink reports whether the URL path contains segment.
func isProductLink(u, segment string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return strings.Contains(parsed.Path, segment)
}

// ExtractLinks collects product URLs from listing markup. Strategies run in
// order and stop once limit URLs are collected. The result never holds two
// URLs with the same canonical form and never exceeds limit.
func ExtractLinks(markup, origin, segment string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	c := collector{origin: origin, segment: segment, limit: limit, seen: map[string]struct{}{}}
	selectors := append([]string{`a[href*="` + segment + `"]`}, cardSelectors...)
	for _, sel := range selectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, href := range hrefs(s) {
				if c.add(href) {
					return false
				}
			}
			return true
		})
		if c.full() {
			break
		}
	}
	return c.links
}

// hrefs returns the element's own href when it is an anchor, otherwise the
// hrefs of the anchors inside it.
func hrefs(s *goquery.Selection) []string {
	if goquery.NodeName(s) == "a" {
		if h, ok := s.Attr("href"); ok {
			return []string{h}
		}
		return nil
	}
	var out []string
	s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		out = append(out, a.AttrOr("href", ""))
	})
	return out
}

type collector struct {
	origin  string
	segment string
	limit   int
	seen    map[string]struct{}
	links   []string
}

func (c *collector) full() bool { return len(c.links) >= c.limit }

// add records href when it is a new product link and reports whether the
// collector is full.
func (c *collector) add(href string) bool {
	u := NormalizeURL(href, c.origin)
	if u == "" || !isProductLink(u, c.segment) {
		return c.full()
	}
	if _, dup := c.seen[u]; dup {
		return c.full()
	}
	c.seen[u] = struct{}{}
	c.links = append(c.links, u)
	return c.full()
}
