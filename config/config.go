package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/lazcrawl/timing"
)

// Engine kinds.
const (
	EngineRod  = "rod"
	EngineHTTP = "http"
)

// Config holds all application configuration.
type Config struct {
	Browser BrowserConfig
	Crawl   CrawlConfig
	Output  OutputConfig
	Webhook WebhookConfig
	Status  StatusConfig
	Log     LogConfig
}

// BrowserConfig controls the driver behind the crawl session.
type BrowserConfig struct {
	// Engine selects the driver: "rod" (real Chromium) or "http" (no JS).
	Engine string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all requests.
	Proxy string

	WindowWidth  int // default: 1920
	WindowHeight int // default: 1080

	// BlockedResourceTypes lists resource types to block.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds blocks well-known tracker domains.
	BlockAds bool // default: true

	AcceptLanguage string

	// HTTPRequestsPerSecond caps the http engine per host.
	HTTPRequestsPerSecond float64 // default: 0.5
}

// CrawlConfig holds the timeouts, pauses and selectors of a session.
type CrawlConfig struct {
	// SiteOrigin resolves site-relative product links.
	SiteOrigin string // default: "https://www.lazada.vn"

	NavigationTimeout  time.Duration // default: 60s
	LoadTimeout        time.Duration // default: 20s
	CaptchaLoadTimeout time.Duration // default: 15s
	NavigationSettle   timing.Range  // default: [1s, 2s)

	CaptchaSelector string        // default: iframe[src*='captcha']
	CaptchaTimeout  time.Duration // default: 60s
	CaptchaPoll     timing.Range  // default: [2s, 3s)
	CaptchaSettle   timing.Range  // default: [2s, 3s)

	ScrollStep   int           // default: 200 (px)
	ScrollPause  time.Duration // default: 100ms
	ScrollSettle timing.Range  // default: [1s, 2s)

	DiscoveryWait        timing.Range // default: [3s, 5s)
	DiscoveryScrolls     int          // default: 5
	DiscoveryScrollPause timing.Range // default: [1s, 2s)
	ProductPathSegment   string       // default: "/products/"

	ProductDelay  timing.Range // default: [3s, 7s)
	CategoryDelay timing.Range // default: [5s, 10s)

	RootSelector   string // default: "#root"
	MinTitleLength int    // default: 10

	// Seed makes pauses reproducible. Zero picks a random seed.
	Seed uint64
}

// OutputConfig controls where a finished batch is persisted.
type OutputConfig struct {
	DataDir    string // default: "data"
	FilePrefix string // default: "lazada_products"

	// SQLitePath additionally stores the batch in a SQLite database.
	SQLitePath string

	// SummaryMarkdown writes a markdown run summary next to the JSON file.
	SummaryMarkdown bool
}

// WebhookConfig controls the batch.completed notification.
type WebhookConfig struct {
	URL        string
	Secret     string
	MaxRetries uint64 // default: 3
}

// StatusConfig controls the optional progress/metrics HTTP server.
type StatusConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string
	Mode string // gin mode; default: "release"

	// Tokens protects /api/v1/progress and /metrics. Empty leaves them open.
	Tokens []string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Default returns the built-in configuration without consulting the environment.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Engine:                EngineRod,
			Headless:              true,
			WindowWidth:           1920,
			WindowHeight:          1080,
			BlockedResourceTypes:  []string{"Font", "Media"},
			BlockAds:              true,
			AcceptLanguage:        "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7",
			HTTPRequestsPerSecond: 0.5,
		},
		Crawl: CrawlConfig{
			SiteOrigin:           "https://www.lazada.vn",
			NavigationTimeout:    60 * time.Second,
			LoadTimeout:          20 * time.Second,
			CaptchaLoadTimeout:   15 * time.Second,
			NavigationSettle:     timing.Range{Min: time.Second, Max: 2 * time.Second},
			CaptchaSelector:      "iframe[src*='captcha']",
			CaptchaTimeout:       60 * time.Second,
			CaptchaPoll:          timing.Range{Min: 2 * time.Second, Max: 3 * time.Second},
			CaptchaSettle:        timing.Range{Min: 2 * time.Second, Max: 3 * time.Second},
			ScrollStep:           200,
			ScrollPause:          100 * time.Millisecond,
			ScrollSettle:         timing.Range{Min: time.Second, Max: 2 * time.Second},
			DiscoveryWait:        timing.Range{Min: 3 * time.Second, Max: 5 * time.Second},
			DiscoveryScrolls:     5,
			DiscoveryScrollPause: timing.Range{Min: time.Second, Max: 2 * time.Second},
			ProductPathSegment:   "/products/",
			ProductDelay:         timing.Range{Min: 3 * time.Second, Max: 7 * time.Second},
			CategoryDelay:        timing.Range{Min: 5 * time.Second, Max: 10 * time.Second},
			RootSelector:         "#root",
			MinTitleLength:       10,
		},
		Output: OutputConfig{
			DataDir:    "data",
			FilePrefix: "lazada_products",
		},
		Webhook: WebhookConfig{MaxRetries: 3},
		Status:  StatusConfig{Mode: "release"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from environment variables on top of Default.
func Load() *Config {
	cfg := Default()
	b, c, o := &cfg.Browser, &cfg.Crawl, &cfg.Output

	b.Engine = envOr("LAZCRAWL_ENGINE", b.Engine)
	b.Headless = envBoolOr("LAZCRAWL_HEADLESS", b.Headless)
	b.NoSandbox = envBoolOr("LAZCRAWL_NO_SANDBOX", b.NoSandbox)
	b.BrowserBin = os.Getenv("LAZCRAWL_BROWSER_BIN")
	b.Proxy = os.Getenv("LAZCRAWL_PROXY")
	b.BlockedResourceTypes = envSliceOr("LAZCRAWL_BLOCKED_RESOURCES", b.BlockedResourceTypes)
	b.BlockAds = envBoolOr("LAZCRAWL_BLOCK_ADS", b.BlockAds)
	b.AcceptLanguage = envOr("LAZCRAWL_ACCEPT_LANGUAGE", b.AcceptLanguage)
	b.HTTPRequestsPerSecond = envFloatOr("LAZCRAWL_HTTP_RPS", b.HTTPRequestsPerSecond)

	c.SiteOrigin = envOr("LAZCRAWL_SITE_ORIGIN", c.SiteOrigin)
	c.NavigationTimeout = envDurationOr("LAZCRAWL_NAV_TIMEOUT", c.NavigationTimeout)
	c.LoadTimeout = envDurationOr("LAZCRAWL_LOAD_TIMEOUT", c.LoadTimeout)
	c.CaptchaTimeout = envDurationOr("LAZCRAWL_CAPTCHA_TIMEOUT", c.CaptchaTimeout)
	c.ProductDelay = envRangeOr("LAZCRAWL_PRODUCT_DELAY", c.ProductDelay)
	c.CategoryDelay = envRangeOr("LAZCRAWL_CATEGORY_DELAY", c.CategoryDelay)
	c.Seed = uint64(envIntOr("LAZCRAWL_SEED", 0))

	o.DataDir = envOr("LAZCRAWL_DATA_DIR", o.DataDir)
	o.FilePrefix = envOr("LAZCRAWL_FILE_PREFIX", o.FilePrefix)
	o.SQLitePath = os.Getenv("LAZCRAWL_SQLITE")
	o.SummaryMarkdown = envBoolOr("LAZCRAWL_SUMMARY_MD", o.SummaryMarkdown)

	cfg.Webhook.URL = os.Getenv("LAZCRAWL_WEBHOOK_URL")
	cfg.Webhook.Secret = os.Getenv("LAZCRAWL_WEBHOOK_SECRET")
	cfg.Status.Addr = os.Getenv("LAZCRAWL_STATUS_ADDR")
	cfg.Status.Tokens = envSliceOr("LAZCRAWL_STATUS_TOKENS", nil)
	cfg.Log.Level = envOr("LAZCRAWL_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("LAZCRAWL_LOG_FORMAT", cfg.Log.Format)
	return cfg
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Browser.Engine != EngineRod && c.Browser.Engine != EngineHTTP {
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Browser.Engine)
	}
	if c.Crawl.SiteOrigin == "" {
		return ErrNoSiteOrigin
	}
	for name, d := range map[string]time.Duration{
		"navigation": c.Crawl.NavigationTimeout,
		"load":       c.Crawl.LoadTimeout,
		"captcha":    c.Crawl.CaptchaTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidTimeout, name)
		}
	}
	for name, r := range map[string]timing.Range{
		"product delay":  c.Crawl.ProductDelay,
		"category delay": c.Crawl.CategoryDelay,
		"captcha poll":   c.Crawl.CaptchaPoll,
	} {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("%w: %s [%s, %s)", ErrInvalidRange, name, r.Min, r.Max)
		}
	}
	if c.Crawl.ScrollStep <= 0 {
		return ErrInvalidScrollStep
	}
	if c.Output.DataDir == "" {
		return ErrNoDataDir
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envRangeOr parses "3s,7s".
func envRangeOr(key string, fallback timing.Range) timing.Range {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	lo, hi, ok := strings.Cut(v, ",")
	if !ok {
		return fallback
	}
	minD, err1 := time.ParseDuration(strings.TrimSpace(lo))
	maxD, err2 := time.ParseDuration(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil {
		return fallback
	}
	return timing.Range{Min: minD, Max: maxD}
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
