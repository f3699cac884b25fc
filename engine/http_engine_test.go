package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedPage(t *testing.T) *HTTPPage {
	t.Helper()
	p := NewHTTPPage(HTTPOptions{})
	httpmock.ActivateNonDefault(p.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return p
}

func TestHTTPPage_NavigateAndQuery(t *testing.T) {
	p := newMockedPage(t)
	httpmock.RegisterResponder(http.MethodGet, "https://shop.test/products/a.html",
		func(req *http.Request) (*http.Response, error) {
			assert.Contains(t, req.Header.Get("User-Agent"), "Chrome/")
			assert.Equal(t, "https://www.google.com/search?q=shop.test", req.Header.Get("Referer"))
			return httpmock.NewStringResponse(200, `<html><body><div id="root"><h1>Hi</h1></div></body></html>`), nil
		})

	ctx := context.Background()
	require.NoError(t, p.Navigate(ctx, "https://shop.test/products/a.html"))
	require.NoError(t, p.WaitLoad(ctx))

	html, err := p.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, `id="root"`)

	has, err := p.Has(ctx, "#root h1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = p.Has(ctx, "iframe[src*='captcha']")
	require.NoError(t, err)
	assert.False(t, has)

	v, err := p.Eval(ctx, "() => document.body.scrollHeight")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Int())
}

func TestHTTPPage_ErrorStatus(t *testing.T) {
	p := newMockedPage(t)
	httpmock.RegisterResponder(http.MethodGet, "https://shop.test/blocked",
		httpmock.NewStringResponder(403, "denied"))

	err := p.Navigate(context.Background(), "https://shop.test/blocked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestHTTPPage_HasBeforeNavigate(t *testing.T) {
	p := NewHTTPPage(HTTPOptions{})
	has, err := p.Has(context.Background(), "div")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = p.Has(context.Background(), "[[[")
	assert.Error(t, err)
}

func TestHTTPPage_LimiterHonoursContext(t *testing.T) {
	p := newMockedPage(t)
	p.opts.RequestsPerSecond = 0.001
	httpmock.RegisterResponder(http.MethodGet, "https://shop.test/a",
		httpmock.NewStringResponder(200, "<html></html>"))

	require.NoError(t, p.Navigate(context.Background(), "https://shop.test/a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Navigate(ctx, "https://shop.test/a"))
}
