// Package discover expands a category listing into product URLs.
package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/lazcrawl/captcha"
	"github.com/use-agent/lazcrawl/engine"
	"github.com/use-agent/lazcrawl/timing"
)

// Options configures a Discoverer.
type Options struct {
	// Origin resolves site-relative links, e.g. https://www.lazada.vn.
	Origin string
	// ProductSegment is the path fragment every product URL contains.
	ProductSegment string

	NavigationTimeout time.Duration
	LoadTimeout       time.Duration

	// Wait is the pause after the listing loads, before the captcha check.
	Wait timing.Range
	// Scrolls is the number of scroll-to-bottom steps.
	Scrolls int
	// ScrollPause follows each scroll step.
	ScrollPause timing.Range
}

// Discoverer loads listing pages and collects product links from them.
type Discoverer struct {
	opts   Options
	guard  *captcha.Guard
	clock  timing.Clock
	jitter *timing.Jitter
}

// New creates a Discoverer.
func New(opts Options, guard *captcha.Guard, clock timing.Clock, jitter *timing.Jitter) *Discoverer {
	return &Discoverer{opts: opts, guard: guard, clock: clock, jitter: jitter}
}

// Discover navigates to listingURL and returns at most limit unique product
// URLs in page order. A listing without product links yields an empty slice
// and no error. Errors wrapping engine.ErrDriverClosed mean the browser is
// gone; any other error is specific to this listing.
func (d *Discoverer) Discover(ctx context.Context, page engine.Page, listingURL string, limit int) ([]string, error) {
	if err := d.load(ctx, page, listingURL); err != nil {
		return nil, err
	}

	if _, err := timing.Pause(ctx, d.clock, d.jitter, d.opts.Wait); err != nil {
		return nil, err
	}
	if _, err := d.guard.Ensure(ctx, page); err != nil {
		return nil, err
	}

	for i := 0; i < d.opts.Scrolls; i++ {
		if err := engine.ScrollToBottom(ctx, page); err != nil {
			if errors.Is(err, engine.ErrDriverClosed) || ctx.Err() != nil {
				return nil, err
			}
			slog.Debug("listing scroll failed", "url", listingURL, "step", i+1, "error", err)
		}
		if _, err := timing.Pause(ctx, d.clock, d.jitter, d.opts.ScrollPause); err != nil {
			return nil, err
		}
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot listing: %w", err)
	}
	links := ExtractLinks(markup, d.opts.Origin, d.opts.ProductSegment, limit)
	slog.Info("listing links discovered", "url", listingURL, "found", len(links), "limit", limit)
	return links, nil
}

func (d *Discoverer) load(ctx context.Context, page engine.Page, listingURL string) error {
	navCtx, cancel := timing.WithTimeout(ctx, d.opts.NavigationTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, listingURL); err != nil {
		return fmt.Errorf("navigate to listing: %w", err)
	}

	loadCtx, cancel := timing.WithTimeout(ctx, d.opts.LoadTimeout)
	defer cancel()
	if err := page.WaitLoad(loadCtx); err != nil {
		if errors.Is(err, engine.ErrDriverClosed) {
			return err
		}
		slog.Debug("listing load wait incomplete, continuing", "url", listingURL, "error", err)
	}
	return nil
}
