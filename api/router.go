package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/lazcrawl/api/handler"
	"github.com/use-agent/lazcrawl/api/middleware"
	"github.com/use-agent/lazcrawl/config"
	"github.com/use-agent/lazcrawl/crawl"
)

// NewRouter creates the status API.
//
// Middleware chain:
//
//	Global:     Recovery → Logger
//	Protected:  Auth (if tokens are configured)
//
// Health is outside auth so liveness probes always work.
func NewRouter(progress *crawl.Progress, metrics *crawl.Metrics, cfg config.StatusConfig, version string, startTime time.Time) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(progress, version, startTime))

	protected := r.Group("")
	protected.Use(middleware.Auth(cfg.Tokens))
	protected.GET("/api/v1/progress", handler.Progress(progress))
	if metrics != nil {
		protected.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}
	return r
}

// Serve runs handler on addr until ctx is done, then drains for up to 5s.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("status server forced shutdown", "error", err)
		return err
	}
	slog.Info("status server drained gracefully")
	return nil
}
