// Package enginetest provides a scripted engine.Page and a simulated clock
// for exercising crawl logic without a browser or real waits.
package enginetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/lazcrawl/engine"
	"github.com/ysmood/gson"
)

// CaptchaMarkup is the block page served while a challenge is active.
const CaptchaMarkup = `<html><body><iframe src="https://verify.shop.test/captcha/v2?token=x"></iframe></body></html>`

// Clock is a simulated timing.Clock. Sleep advances time instantly.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewClock creates a Clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

// Advance moves the clock forward without recording a sleep.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleeps returns every duration passed to Sleep, in order.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Page is a scripted engine.Page. Zero-value maps are treated as empty.
type Page struct {
	Clock *Clock

	// Pages maps a URL to the markup served for it.
	Pages map[string]string
	// NavErrors makes Navigate fail for a URL.
	NavErrors map[string]error
	// LoadErrors makes WaitLoad fail after navigating to a URL.
	LoadErrors map[string]error
	// Captcha keeps a challenge on screen for the given duration after
	// navigating to a URL.
	Captcha map[string]time.Duration
	// ScrollHeight is returned for document height queries.
	ScrollHeight int
	// Closed makes every call fail with engine.ErrDriverClosed.
	Closed bool

	mu           sync.Mutex
	current      string
	captchaUntil time.Time
	visited      []string
	evals        []string
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	if err, ok := p.NavErrors[url]; ok {
		return err
	}
	if _, ok := p.Pages[url]; !ok {
		return fmt.Errorf("enginetest: no page scripted for %s", url)
	}
	p.current = url
	p.captchaUntil = p.Clock.Now().Add(p.Captcha[url])
	return nil
}

func (p *Page) WaitLoad(ctx context.Context) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.LoadErrors[p.current]
}

func (p *Page) Eval(ctx context.Context, js string) (gson.JSON, error) {
	if err := p.check(ctx); err != nil {
		return gson.New(nil), err
	}
	p.mu.Lock()
	p.evals = append(p.evals, js)
	p.mu.Unlock()
	if strings.Contains(js, "scrollHeight") && !strings.Contains(js, "scrollTo") {
		return gson.New(p.ScrollHeight), nil
	}
	return gson.New(nil), nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := p.check(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Clock.Now().Before(p.captchaUntil) {
		return CaptchaMarkup, nil
	}
	return p.Pages[p.current], nil
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	markup, err := p.HTML(ctx)
	if err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// Visited returns every URL passed to Navigate, in order.
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.visited))
	copy(out, p.visited)
	return out
}

// Evals returns every script passed to Eval, in order.
func (p *Page) Evals() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.evals))
	copy(out, p.evals)
	return out
}

func (p *Page) check(ctx context.Context) error {
	if p.Closed {
		return fmt.Errorf("enginetest: %w", engine.ErrDriverClosed)
	}
	return ctx.Err()
}
