package discover

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/lazcrawl/captcha"
	"github.com/use-agent/lazcrawl/engine"
	"github.com/use-agent/lazcrawl/engine/enginetest"
	"github.com/use-agent/lazcrawl/timing"
)

const (
	origin     = "https://www.lazada.vn"
	segment    = "/products/"
	listingURL = "https://www.lazada.vn/dien-thoai-di-dong/"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		href, want string
	}{
		{"//www.lazada.vn/products/a-i1.html?spm=x", "https://www.lazada.vn/products/a-i1.html"},
		{"/products/b-i2.html", "https://www.lazada.vn/products/b-i2.html"},
		{"products/c-i3.html#reviews", "https://www.lazada.vn/products/c-i3.html"},
		{"https://www.lazada.vn/products/d-i4.html", "https://www.lazada.vn/products/d-i4.html"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.href, origin); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	for _, u := range []string{
		"https://www.lazada.vn/products/a-i1.html",
		"https://www.lazada.vn/products/b-i2-s3.html",
		"http://example.test/products/x",
	} {
		once := NormalizeURL(u, origin)
		assert.Equal(t, u, once)
		assert.Equal(t, once, NormalizeURL(once, origin))
	}
}

func TestExtractLinks_DedupAndOrder(t *testing.T) {
	markup := `<html><body>
		<a href="//www.lazada.vn/products/a-i1.html?from=list">A</a>
		<a href="/products/a-i1.html?from=card">A again</a>
		<a href="/catalog/not-a-product">skip</a>
		<div class="Bm3ON"><a href="/products/b-i2.html">B</a></div>
		<div data-tracking="product-card"><a href="products/c-i3.html">C</a></div>
		<div class="qmXQo"><a href="/shop/store">store</a></div>
	</body></html>`

	links := ExtractLinks(markup, origin, segment, 10)
	assert.Equal(t, []string{
		"https://www.lazada.vn/products/a-i1.html",
		"https://www.lazada.vn/products/b-i2.html",
		"https://www.lazada.vn/products/c-i3.html",
	}, links)
}

func TestExtractLinks_Cap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, `<a href="/products/p-i%d.html">p</a>`, i)
	}
	links := ExtractLinks(b.String(), origin, segment, 2)
	assert.Equal(t, []string{
		"https://www.lazada.vn/products/p-i0.html",
		"https://www.lazada.vn/products/p-i1.html",
	}, links)

	assert.Empty(t, ExtractLinks(b.String(), origin, segment, 0))
}

func TestExtractLinks_NeverDuplicatesOrExceedsLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `<div class="Bm3ON"><a href="/products/p-i%d.html?q=%d">p</a></div>`, i%7, i)
	}
	for limit := 1; limit <= 10; limit++ {
		links := ExtractLinks(b.String(), origin, segment, limit)
		assert.LessOrEqual(t, len(links), limit)
		seen := map[string]bool{}
		for _, l := range links {
			c := canonical(l)
			assert.False(t, seen[c], "duplicate %s", c)
			seen[c] = true
		}
	}
}

func TestExtractLinks_NoLinks(t *testing.T) {
	assert.Empty(t, ExtractLinks(`<html><body><p>Không có sản phẩm</p></body></html>`, origin, segment, 5))
}

func newDiscoverer(clock *enginetest.Clock) *Discoverer {
	jitter := timing.NewJitter(7)
	guard := captcha.NewGuard(captcha.Options{
		Selector: "iframe[src*='captcha']",
		Timeout:  60 * time.Second,
		Poll:     timing.Range{Min: 2 * time.Second, Max: 3 * time.Second},
		Settle:   timing.Range{Min: 2 * time.Second, Max: 3 * time.Second},
	}, clock, jitter)
	return New(Options{
		Origin:            origin,
		ProductSegment:    segment,
		NavigationTimeout: 60 * time.Second,
		LoadTimeout:       20 * time.Second,
		Wait:              timing.Range{Min: 3 * time.Second, Max: 5 * time.Second},
		Scrolls:           5,
		ScrollPause:       timing.Range{Min: time.Second, Max: 2 * time.Second},
	}, guard, clock, jitter)
}

func TestDiscover(t *testing.T) {
	clock := enginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	page := &enginetest.Page{
		Clock: clock,
		Pages: map[string]string{listingURL: `<div id="root">
			<a href="/products/a-i1.html">a</a><a href="/products/b-i2.html">b</a><a href="/products/c-i3.html">c</a>
		</div>`},
	}

	links, err := newDiscoverer(clock).Discover(context.Background(), page, listingURL, 2)
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Equal(t, []string{listingURL}, page.Visited())

	scrolls := 0
	for _, js := range page.Evals() {
		if strings.Contains(js, "scrollTo") {
			scrolls++
		}
	}
	assert.Equal(t, 5, scrolls)
	// initial wait plus one pause per scroll
	assert.Len(t, clock.Sleeps(), 6)
}

func TestDiscover_CaptchaTimeout(t *testing.T) {
	clock := enginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	page := &enginetest.Page{
		Clock:   clock,
		Pages:   map[string]string{listingURL: `<div id="root"></div>`},
		Captcha: map[string]time.Duration{listingURL: time.Hour},
	}

	_, err := newDiscoverer(clock).Discover(context.Background(), page, listingURL, 2)
	assert.ErrorIs(t, err, captcha.ErrTimeout)
}

func TestDiscover_NavigationError(t *testing.T) {
	clock := enginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	page := &enginetest.Page{
		Clock:     clock,
		Pages:     map[string]string{listingURL: ""},
		NavErrors: map[string]error{listingURL: context.DeadlineExceeded},
	}

	_, err := newDiscoverer(clock).Discover(context.Background(), page, listingURL, 2)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, engine.ErrDriverClosed))
}

func TestDiscover_DriverClosed(t *testing.T) {
	clock := enginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	page := &enginetest.Page{Clock: clock, Closed: true}

	_, err := newDiscoverer(clock).Discover(context.Background(), page, listingURL, 2)
	assert.ErrorIs(t, err, engine.ErrDriverClosed)
}
