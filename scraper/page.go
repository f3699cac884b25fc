package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/lazcrawl/engine"
	"github.com/ysmood/gson"
)

// probeTimeout bounds the liveness check run after a failed driver call.
const probeTimeout = 5 * time.Second

// Page is the rod-backed engine.Page.
type Page struct {
	page           *rod.Page
	browser        *rod.Browser
	router         *rod.HijackRouter
	acceptLanguage string
}

var _ engine.Page = (*Page)(nil)

// Navigate sets a search-engine Referer for the target host and loads url.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	headers := map[string]string{}
	if p.acceptLanguage != "" {
		headers["Accept-Language"] = p.acceptLanguage
	}
	if u, err := url.Parse(rawURL); err == nil {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(p.page)

	return p.classify(ctx, p.page.Context(ctx).Navigate(rawURL))
}

func (p *Page) WaitLoad(ctx context.Context) error {
	return p.classify(ctx, p.page.Context(ctx).WaitLoad())
}

func (p *Page) Eval(ctx context.Context, js string) (gson.JSON, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return gson.New(nil), p.classify(ctx, err)
	}
	return res.Value, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	return html, p.classify(ctx, err)
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, p.classify(ctx, err)
}

// Close stops request interception and closes the tab.
func (p *Page) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}

// classify marks err as engine.ErrDriverClosed when the browser no longer
// answers. Deadline and cancellation errors are returned unchanged.
func (p *Page) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if _, probeErr := (proto.BrowserGetVersion{}).Call(p.browser.Context(probeCtx)); probeErr != nil {
		slog.Error("browser stopped responding", "error", err, "probe_error", probeErr)
		return fmt.Errorf("%w: %v", engine.ErrDriverClosed, err)
	}
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
