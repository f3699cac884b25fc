package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/use-agent/lazcrawl/api"
	"github.com/use-agent/lazcrawl/config"
	"github.com/use-agent/lazcrawl/crawl"
	"github.com/use-agent/lazcrawl/engine"
	"github.com/use-agent/lazcrawl/models"
	"github.com/use-agent/lazcrawl/scraper"
	"github.com/use-agent/lazcrawl/sink"
	"github.com/use-agent/lazcrawl/webhook"
)

// run loads the targets for mode, crawls them and reports the outcome.
func run(ctx context.Context, cfg *config.Config, mode config.Mode, targetsFlag string, stdout io.Writer) error {
	// ── 1. Targets ──────────────────────────────────────────────────
	path, err := config.FindTargetsFile(targetsFlag)
	if err != nil {
		return fmt.Errorf("%w (create %s or pass --targets)", err, config.DefaultTargetsFile)
	}
	targets, err := config.LoadTargets(path)
	if err != nil {
		return err
	}
	var (
		urls []string
		cats []models.CategorySpec
	)
	switch mode {
	case config.ModeCategories:
		cats, err = targets.CategoryList()
	default:
		urls, err = targets.URLList()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("targets loaded", "file", path, "mode", mode, "urls", len(urls), "categories", len(cats))

	// ── 2. Sinks ────────────────────────────────────────────────────
	out, closeSinks, err := buildSink(cfg.Output)
	if err != nil {
		return err
	}
	defer closeSinks()

	// ── 3. Status server ────────────────────────────────────────────
	progress := crawl.NewProgress()
	metrics := crawl.NewMetrics()
	if cfg.Status.Addr != "" {
		srvCtx, stopServer := context.WithCancel(context.Background())
		defer stopServer()
		router := api.NewRouter(progress, metrics, cfg.Status, getVersion(), time.Now())
		go func() {
			if err := api.Serve(srvCtx, cfg.Status.Addr, router); err != nil {
				slog.Error("status server error", "error", err)
			}
		}()
	}

	// ── 4. Page engine ──────────────────────────────────────────────
	page, closePage, err := openPage(ctx, cfg.Browser)
	if err != nil {
		return err
	}
	defer closePage()

	// ── 5. Crawl ────────────────────────────────────────────────────
	session := crawl.NewSession(cfg.Crawl, page, out, crawl.WithProgress(progress), crawl.WithMetrics(metrics))
	var res *crawl.Result
	if mode == config.ModeCategories {
		res, err = session.RunCategories(ctx, cats)
	} else {
		res, err = session.RunURLs(ctx, urls)
	}
	if res != nil {
		printSummary(stdout, res)
	}
	if err != nil {
		return err
	}

	// ── 6. Notify ───────────────────────────────────────────────────
	if cfg.Webhook.URL != "" {
		notify(ctx, cfg.Webhook, res)
	}
	return nil
}

// openPage returns the single tab the session drives.
func openPage(ctx context.Context, cfg config.BrowserConfig) (engine.Page, func(), error) {
	if cfg.Engine == config.EngineHTTP {
		slog.Info("using http engine, pages are not rendered")
		return engine.NewHTTPPage(engine.HTTPOptions{
			RequestsPerSecond: cfg.HTTPRequestsPerSecond,
			AcceptLanguage:    cfg.AcceptLanguage,
		}), func() {}, nil
	}

	browser, err := scraper.Launch(cfg)
	if err != nil {
		return nil, nil, err
	}
	page, err := browser.NewPage(ctx)
	if err != nil {
		_ = browser.Close()
		return nil, nil, err
	}
	return page, func() {
		_ = page.Close()
		if err := browser.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
		slog.Info("browser closed")
	}, nil
}

// buildSink assembles the JSON sink plus the optional SQLite and markdown ones.
func buildSink(cfg config.OutputConfig) (crawl.ResultSink, func(), error) {
	var (
		secondaries []sink.Persister
		closers     []func() error
	)
	if cfg.SQLitePath != "" {
		db, err := sink.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, models.NewCrawlError(models.ErrCodeInvalidConfig, "cannot open sqlite sink", cfg.SQLitePath, err)
		}
		secondaries = append(secondaries, db)
		closers = append(closers, db.Close)
	}
	if cfg.SummaryMarkdown {
		secondaries = append(secondaries, sink.NewMarkdown(cfg.DataDir, cfg.FilePrefix))
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("sink close failed", "error", err)
			}
		}
	}
	return sink.NewMulti(sink.NewJSONFile(cfg.DataDir, cfg.FilePrefix), secondaries...), closeAll, nil
}

func notify(ctx context.Context, cfg config.WebhookConfig, res *crawl.Result) {
	rc := webhook.DefaultRetryConfig()
	rc.MaxRetries = cfg.MaxRetries
	ev := webhook.BatchCompleted(res.Output, res.Location, time.Now())
	if err := webhook.DeliverWithRetry(ctx, rc, cfg.URL, cfg.Secret, ev); err != nil {
		slog.Error("webhook delivery failed", "url", cfg.URL, "error", err)
	}
}

// printSummary writes the end-of-run counts and failed URLs.
func printSummary(w io.Writer, res *crawl.Result) {
	out := res.Output
	if res.Location != "" {
		fmt.Fprintf(w, "Results saved to: %s\n", res.Location)
	}
	fmt.Fprintf(w, "Total products crawled: %d\n", out.TotalProducts)
	fmt.Fprintf(w, "Successful: %d\n", out.SuccessfulURLs)
	fmt.Fprintf(w, "Failed: %d\n", out.FailedURLs)
	if len(out.Failed) > 0 {
		fmt.Fprintln(w, "\nFailed URLs:")
		for _, u := range out.Failed {
			fmt.Fprintf(w, "   - %s\n", u)
		}
	}
}
