package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/lazcrawl/config"
	"github.com/use-agent/lazcrawl/models"
)

// Browser owns the Chromium process driven by a crawl session.
type Browser struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

// Launch starts a Chromium instance with automation fingerprints stripped
// and connects to it. Failure here is fatal for the session.
func Launch(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight))
	l.Set(flags.Flag("ignore-certificate-errors"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeSessionFatal, "failed to launch browser", "", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCrawlError(models.ErrCodeSessionFatal, "failed to connect to browser", "", err)
	}

	return &Browser{browser: browser, cfg: cfg}, nil
}

// NewPage opens the tab a session drives. Stealth scripts and resource
// blocking are installed before any navigation happens.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeSessionFatal, "failed to open tab", "", err)
	}
	page = page.Context(context.Background())

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.cfg.WindowWidth,
		Height:            b.cfg.WindowHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("failed to set viewport", "error", err)
	}

	return &Page{
		page:           page,
		browser:        b.browser,
		router:         setupHijack(page, b.cfg.BlockedResourceTypes, b.cfg.BlockAds),
		acceptLanguage: b.cfg.AcceptLanguage,
	}, nil
}

// Close kills the browser process.
// Call this on shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() error {
	slog.Info("closing browser")
	return b.browser.Close()
}
