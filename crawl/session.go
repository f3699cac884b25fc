// Package crawl drives a single browser tab through a list of product pages
// or category listings and accumulates the outcome in an append-only batch.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/use-agent/lazcrawl/captcha"
	"github.com/use-agent/lazcrawl/config"
	"github.com/use-agent/lazcrawl/discover"
	"github.com/use-agent/lazcrawl/engine"
	"github.com/use-agent/lazcrawl/extract"
	"github.com/use-agent/lazcrawl/models"
	"github.com/use-agent/lazcrawl/timing"
)

// secondsPerTarget feeds the rough duration estimate logged at start.
const secondsPerTarget = 15

// ResultSink persists a closed batch and returns where it went.
type ResultSink interface {
	Persist(ctx context.Context, out *models.BatchOutput) (string, error)
}

// Result is the outcome of a session that reached the end of its targets.
type Result struct {
	Output *models.BatchOutput
	// Location is what the sink reported, e.g. the JSON file path.
	Location string
}

// Option customises a Session.
type Option func(*Session)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c timing.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithProgress publishes state changes to p.
func WithProgress(p *Progress) Option {
	return func(s *Session) { s.progress = p }
}

// WithMetrics records session metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one sequential crawl over a single tab. A Session runs once;
// create a new one for each run.
type Session struct {
	cfg  config.CrawlConfig
	page engine.Page
	sink ResultSink

	clock      timing.Clock
	jitter     *timing.Jitter
	guard      *captcha.Guard
	extractor  *extract.Extractor
	discoverer *discover.Discoverer

	progress *Progress
	metrics  *Metrics

	batch *models.Batch
}

// NewSession wires a session around page. Results are handed to sink when the
// targets are exhausted.
func NewSession(cfg config.CrawlConfig, page engine.Page, sink ResultSink, opts ...Option) *Session {
	s := &Session{
		cfg:    cfg,
		page:   page,
		sink:   sink,
		clock:  timing.Real(),
		jitter: timing.NewJitter(cfg.Seed),
		batch:  models.NewBatch(),
	}
	for _, o := range opts {
		o(s)
	}

	s.guard = captcha.NewGuard(captcha.Options{
		Selector: cfg.CaptchaSelector,
		Timeout:  cfg.CaptchaTimeout,
		Poll:     cfg.CaptchaPoll,
		Settle:   cfg.CaptchaSettle,
	}, s.clock, s.jitter)
	s.extractor = extract.New(extract.Options{
		RootSelector:   cfg.RootSelector,
		MinTitleLength: cfg.MinTitleLength,
	})
	s.discoverer = discover.New(discover.Options{
		Origin:            cfg.SiteOrigin,
		ProductSegment:    cfg.ProductPathSegment,
		NavigationTimeout: cfg.NavigationTimeout,
		LoadTimeout:       cfg.LoadTimeout,
		Wait:              cfg.DiscoveryWait,
		Scrolls:           cfg.DiscoveryScrolls,
		ScrollPause:       cfg.DiscoveryScrollPause,
	}, s.guard, s.clock, s.jitter)
	return s
}

// RunURLs crawls urls in order. Per-target failures are recorded and never
// returned; the returned error is either SessionFatal (nothing persisted) or
// PersistFailed (Result still carries the batch).
func (s *Session) RunURLs(ctx context.Context, urls []string) (*Result, error) {
	s.start("urls", len(urls))
	slog.Info("crawl started", "mode", "urls", "targets", len(urls),
		"estimate", (time.Duration(len(urls)*secondsPerTarget) * time.Second).String())

	for i, u := range urls {
		slog.Info("processing url", "n", i+1, "of", len(urls), "url", u)
		if err := s.crawlTarget(ctx, u, ""); err != nil {
			return nil, s.abort(err)
		}
		if i < len(urls)-1 {
			if err := s.delay(ctx, "product", s.cfg.ProductDelay); err != nil {
				return nil, s.abort(err)
			}
		}
	}
	return s.finish(ctx)
}

// RunCategories discovers product links for each category and crawls them,
// tagging every record with the category label.
func (s *Session) RunCategories(ctx context.Context, cats []models.CategorySpec) (*Result, error) {
	s.start("categories", 0)
	s.progress.update(func(snap *Snapshot) { snap.Categories = len(cats) })
	slog.Info("crawl started", "mode", "categories", "categories", len(cats))

	for i, cat := range cats {
		s.progress.update(func(snap *Snapshot) {
			snap.Category, snap.CategoryNo = cat.Label, i+1
		})
		if err := s.crawlCategory(ctx, cat); err != nil {
			return nil, s.abort(err)
		}
		if i < len(cats)-1 {
			if err := s.delay(ctx, "category", s.cfg.CategoryDelay); err != nil {
				return nil, s.abort(err)
			}
		}
	}
	return s.finish(ctx)
}

func (s *Session) crawlCategory(ctx context.Context, cat models.CategorySpec) error {
	log := slog.With("category", cat.Label)
	log.Info("crawling category", "url", cat.ListingURL, "maxProducts", cat.Cap())

	s.setState(StateNavigating)
	links, err := s.discoverer.Discover(ctx, s.page, cat.ListingURL, cat.Cap())
	if err != nil {
		if fatal := s.fatal(ctx, err, cat.ListingURL); fatal != nil {
			return fatal
		}
		if errors.Is(err, captcha.ErrTimeout) {
			s.metrics.IncCaptcha("timeout")
		}
		ce := models.NewCrawlError(models.ErrCodeDiscoveryFailed, "category listing unavailable", cat.ListingURL, err)
		log.Warn("category skipped", "code", ce.Code, "error", ce)
		return nil
	}
	if len(links) == 0 {
		log.Warn("category skipped", "code", models.ErrCodeDiscoveryEmpty, "url", cat.ListingURL)
		return nil
	}
	s.metrics.AddDiscovered(len(links))
	s.progress.update(func(snap *Snapshot) { snap.Planned += len(links) })

	before, _ := s.batch.Len()
	for i, link := range links {
		log.Info("processing product", "n", i+1, "of", len(links), "url", link)
		if err := s.crawlTarget(ctx, link, cat.Label); err != nil {
			return err
		}
		if i < len(links)-1 {
			if err := s.delay(ctx, "product", s.cfg.ProductDelay); err != nil {
				return err
			}
		}
	}
	after, _ := s.batch.Len()
	log.Info("category completed", "products", after-before)
	return nil
}

// crawlTarget runs one product page through the state machine and records
// the outcome. It returns an error only when the session must stop.
func (s *Session) crawlTarget(ctx context.Context, url, category string) error {
	if s.batch.Succeeded(url) {
		slog.Info("skipping already crawled url", "url", url)
		return nil
	}

	s.progress.update(func(snap *Snapshot) { snap.CurrentURL = url })
	started := s.clock.Now()
	rec, err := s.attempt(ctx, url)
	elapsed := s.clock.Now().Sub(started)

	s.setState(StateRecording)
	if err != nil {
		if fatal := s.fatal(ctx, err, url); fatal != nil {
			return fatal
		}
		if rerr := s.batch.AddFailure(url); rerr != nil {
			return rerr
		}
		s.metrics.ObserveTarget(models.CodeOf(err), elapsed)
		s.progress.update(func(snap *Snapshot) { snap.Attempted++; snap.Failed++ })
		slog.Warn("target failed", "url", url, "code", models.CodeOf(err), "error", err)
		return nil
	}

	rec.SourceURL = url
	rec.CategoryLabel = category
	rec.CrawledAt = s.clock.Now().UTC()
	rec.ElapsedSeconds = math.Round(elapsed.Seconds()*100) / 100
	if err := s.batch.AddSuccess(*rec); err != nil {
		return err
	}
	s.metrics.ObserveTarget("", elapsed)
	s.progress.update(func(snap *Snapshot) { snap.Attempted++; snap.Succeeded++ })
	slog.Info("target crawled", "url", url, "title", truncate(rec.Title, 50), "elapsed", rec.ElapsedSeconds)
	return nil
}

// attempt is steps navigate -> captcha -> scroll -> extract for one page.
func (s *Session) attempt(ctx context.Context, url string) (*models.ProductRecord, error) {
	s.setState(StateNavigating)
	if err := s.navigate(ctx, url); err != nil {
		return nil, err
	}
	s.waitLoad(ctx, s.cfg.LoadTimeout)
	if _, err := timing.Pause(ctx, s.clock, s.jitter, s.cfg.NavigationSettle); err != nil {
		return nil, err
	}

	s.setState(StateGuardingCaptcha)
	rep, err := s.guard.Ensure(ctx, s.page)
	if err != nil {
		if errors.Is(err, captcha.ErrTimeout) {
			s.metrics.IncCaptcha("timeout")
			return nil, models.NewCrawlError(models.ErrCodeCaptchaTimeout, "challenge not cleared", url, err)
		}
		return nil, err
	}
	if rep.Challenged {
		s.metrics.IncCaptcha("cleared")
		s.waitLoad(ctx, s.cfg.CaptchaLoadTimeout)
	}

	s.setState(StateExtracting)
	if err := engine.ScrollThrough(ctx, s.page, s.clock, s.cfg.ScrollStep, s.cfg.ScrollPause); err != nil {
		if errors.Is(err, engine.ErrDriverClosed) || ctx.Err() != nil {
			return nil, err
		}
		slog.Debug("scroll pass incomplete", "url", url, "error", err)
	}
	if _, err := timing.Pause(ctx, s.clock, s.jitter, s.cfg.ScrollSettle); err != nil {
		return nil, err
	}

	markup, err := s.page.HTML(ctx)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeNavigation, "snapshot failed", url, err)
	}
	return s.extract(markup, url)
}

func (s *Session) navigate(ctx context.Context, url string) error {
	navCtx, cancel := timing.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	err := s.page.Navigate(navCtx, url)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return models.NewCrawlError(models.ErrCodeNavigationTimeout, "navigation timed out", url, err)
	default:
		return models.NewCrawlError(models.ErrCodeNavigation, "navigation failed", url, err)
	}
}

// waitLoad is best-effort: a slow page is still read.
func (s *Session) waitLoad(ctx context.Context, d time.Duration) {
	loadCtx, cancel := timing.WithTimeout(ctx, d)
	defer cancel()
	if err := s.page.WaitLoad(loadCtx); err != nil {
		slog.Debug("load wait incomplete, continuing", "error", err)
	}
}

// extract runs the extractor, converting a panic into a per-target failure.
func (s *Session) extract(markup, url string) (rec *models.ProductRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, models.NewCrawlError(models.ErrCodeExtractionPanic, fmt.Sprint(r), url, nil)
		}
	}()
	rec, err = s.extractor.Extract(markup)
	if errors.Is(err, extract.ErrContentMissing) {
		return nil, models.NewCrawlError(models.ErrCodeContentMissing, "possible bot detection", url, err)
	}
	return rec, err
}

func (s *Session) delay(ctx context.Context, kind string, r timing.Range) error {
	s.setState(StateDelaying)
	d, err := timing.Pause(ctx, s.clock, s.jitter, r)
	s.metrics.AddPause(kind, d)
	slog.Debug("waiting before next target", "kind", kind, "delay", d.Round(time.Millisecond))
	return err
}

// fatal returns a SessionFatal error when err means the run cannot go on:
// the driver is gone or the session's own context is done.
func (s *Session) fatal(ctx context.Context, err error, url string) error {
	switch {
	case errors.Is(err, engine.ErrDriverClosed):
		return models.NewCrawlError(models.ErrCodeSessionFatal, "browser cannot be controlled", url, err)
	case ctx.Err() != nil:
		return models.NewCrawlError(models.ErrCodeSessionFatal, "session cancelled", url, ctx.Err())
	}
	return nil
}

func (s *Session) abort(err error) error {
	if !models.IsFatal(err) {
		err = models.NewCrawlError(models.ErrCodeSessionFatal, "session aborted", "", err)
	}
	s.progress.update(func(snap *Snapshot) { snap.State, snap.Fatal = StateDone, err.Error() })
	slog.Error("crawl aborted, results not saved", "error", err)
	return err
}

// finish closes the batch and hands it to the sink.
func (s *Session) finish(ctx context.Context) (*Result, error) {
	s.setState(StateDone)
	out, err := s.batch.Close(s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	res := &Result{Output: out}

	if s.sink != nil {
		loc, err := s.sink.Persist(ctx, out)
		if err != nil {
			return res, models.NewCrawlError(models.ErrCodePersistFailed, "could not save results", "", err)
		}
		res.Location = loc
		s.progress.update(func(snap *Snapshot) { snap.Output = loc })
	}

	slog.Info("crawl finished",
		"products", out.TotalProducts,
		"successful", out.SuccessfulURLs,
		"failed", out.FailedURLs,
		"output", res.Location,
	)
	return res, nil
}

func (s *Session) start(mode string, planned int) {
	s.progress.update(func(snap *Snapshot) {
		*snap = Snapshot{State: StateIdle, Mode: mode, Planned: planned, StartedAt: s.clock.Now().UTC()}
	})
}

func (s *Session) setState(st State) {
	s.progress.setState(st)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
