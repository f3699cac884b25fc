package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/lazcrawl/models"
	"github.com/use-agent/lazcrawl/timing"
)

func TestDefault_MatchesCrawlPolicy(t *testing.T) {
	c := Default().Crawl
	assert.Equal(t, 60*time.Second, c.NavigationTimeout)
	assert.Equal(t, 20*time.Second, c.LoadTimeout)
	assert.Equal(t, 60*time.Second, c.CaptchaTimeout)
	assert.Equal(t, timing.Range{Min: 3 * time.Second, Max: 7 * time.Second}, c.ProductDelay)
	assert.Equal(t, timing.Range{Min: 5 * time.Second, Max: 10 * time.Second}, c.CategoryDelay)
	assert.Equal(t, 5, c.DiscoveryScrolls)
	require.NoError(t, Default().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"unknown engine", func(c *Config) { c.Browser.Engine = "selenium" }, ErrUnknownEngine},
		{"empty origin", func(c *Config) { c.Crawl.SiteOrigin = "" }, ErrNoSiteOrigin},
		{"zero nav timeout", func(c *Config) { c.Crawl.NavigationTimeout = 0 }, ErrInvalidTimeout},
		{"negative captcha timeout", func(c *Config) { c.Crawl.CaptchaTimeout = -time.Second }, ErrInvalidTimeout},
		{"inverted delay", func(c *Config) {
			c.Crawl.ProductDelay = timing.Range{Min: 7 * time.Second, Max: 3 * time.Second}
		}, ErrInvalidRange},
		{"zero scroll step", func(c *Config) { c.Crawl.ScrollStep = 0 }, ErrInvalidScrollStep},
		{"empty data dir", func(c *Config) { c.Output.DataDir = "" }, ErrNoDataDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("LAZCRAWL_ENGINE", "http")
	t.Setenv("LAZCRAWL_NAV_TIMEOUT", "30s")
	t.Setenv("LAZCRAWL_PRODUCT_DELAY", "1s, 2s")
	t.Setenv("LAZCRAWL_CATEGORY_DELAY", "garbage")
	t.Setenv("LAZCRAWL_DATA_DIR", "/tmp/out")
	t.Setenv("LAZCRAWL_STATUS_TOKENS", "a, b,")

	cfg := Load()
	assert.Equal(t, EngineHTTP, cfg.Browser.Engine)
	assert.Equal(t, 30*time.Second, cfg.Crawl.NavigationTimeout)
	assert.Equal(t, timing.Range{Min: time.Second, Max: 2 * time.Second}, cfg.Crawl.ProductDelay)
	assert.Equal(t, Default().Crawl.CategoryDelay, cfg.Crawl.CategoryDelay)
	assert.Equal(t, "/tmp/out", cfg.Output.DataDir)
	assert.Equal(t, []string{"a", "b"}, cfg.Status.Tokens)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":           ModeURLs,
		"urls":       ModeURLs,
		"categories": ModeCategories,
		"Category":   ModeCategories,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("products")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func writeTargets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTargets(t *testing.T) {
	path := writeTargets(t, `
urls:
  - https://www.lazada.vn/products/a-i1.html
  - "  "
  - https://www.lazada.vn/products/b-i2.html
categories:
  - name: Phones
    url: https://www.lazada.vn/dien-thoai-di-dong/
    maxProducts: 2
  - name: Laptops
    url: https://www.lazada.vn/laptop/
`)
	targets, err := LoadTargets(path)
	require.NoError(t, err)

	urls, err := targets.URLList()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.lazada.vn/products/a-i1.html",
		"https://www.lazada.vn/products/b-i2.html",
	}, urls)

	cats, err := targets.CategoryList()
	require.NoError(t, err)
	assert.Equal(t, []models.CategorySpec{
		{Label: "Phones", ListingURL: "https://www.lazada.vn/dien-thoai-di-dong/", MaxProducts: 2},
		{Label: "Laptops", ListingURL: "https://www.lazada.vn/laptop/", MaxProducts: models.DefaultMaxProducts},
	}, cats)
}

func TestTargets_Empty(t *testing.T) {
	targets, err := LoadTargets(writeTargets(t, "urls: []\n"))
	require.NoError(t, err)

	_, err = targets.URLList()
	assert.ErrorIs(t, err, ErrNoTargets)
	_, err = targets.CategoryList()
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestTargets_InvalidCategory(t *testing.T) {
	targets := &Targets{Categories: []models.CategorySpec{{Label: "x"}}}
	_, err := targets.CategoryList()
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestLoadTargets_Missing(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrTargetsNotFound)
}

func TestFindTargetsFile(t *testing.T) {
	path := writeTargets(t, "urls: [a]\n")

	got, err := FindTargetsFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	t.Setenv("LAZCRAWL_TARGETS", path)
	got, err = FindTargetsFile("")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = FindTargetsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrTargetsNotFound)
}
