package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	tls "github.com/refraction-networking/utls"
	"github.com/ysmood/gson"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// HTTPOptions configures an HTTPPage.
type HTTPOptions struct {
	// RequestsPerSecond caps requests per host. Zero disables the limiter.
	RequestsPerSecond float64
	// AcceptLanguage is sent with every request.
	AcceptLanguage string
}

// HTTPPage is a Page without a rendering engine. It fetches markup with a
// Chrome TLS fingerprint; scripts never run, so Eval always yields null and
// WaitLoad returns as soon as the response body is read.
type HTTPPage struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	doc      *html.Node
	raw      string
}

// NewHTTPPage creates an HTTPPage with a Chrome-like TLS fingerprint.
func NewHTTPPage(opts HTTPOptions) *HTTPPage {
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7"
	}
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &HTTPPage{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *HTTPPage) Navigate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("http_engine: parse url: %w", err)
	}
	if err := p.wait(ctx, u.Hostname()); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("http_engine: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", p.opts.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Referer", "https://www.google.com/search?q="+url.QueryEscape(u.Hostname()))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	// Read body with a 10 MB limit to prevent unbounded memory use.
	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("http_engine: read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("http_engine: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("http_engine: parse html: %w", err)
	}

	p.mu.Lock()
	p.raw, p.doc = string(body), doc
	p.mu.Unlock()
	return nil
}

func (p *HTTPPage) WaitLoad(ctx context.Context) error {
	return ctx.Err()
}

func (p *HTTPPage) Eval(ctx context.Context, _ string) (gson.JSON, error) {
	return gson.New(nil), ctx.Err()
}

func (p *HTTPPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.raw, nil
}

func (p *HTTPPage) Has(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return false, nil
	}
	return cascadia.Query(p.doc, sel) != nil, nil
}

// wait blocks on the per-host limiter.
func (p *HTTPPage) wait(ctx context.Context, host string) error {
	if p.opts.RequestsPerSecond <= 0 {
		return nil
	}
	p.mu.Lock()
	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.opts.RequestsPerSecond), 1)
		p.limiters[host] = l
	}
	p.mu.Unlock()
	return l.Wait(ctx)
}
