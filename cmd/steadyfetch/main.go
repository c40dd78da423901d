package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/steadyfetch/steadyfetch/api"
	"github.com/steadyfetch/steadyfetch/breaker"
	"github.com/steadyfetch/steadyfetch/cache"
	"github.com/steadyfetch/steadyfetch/config"
	"github.com/steadyfetch/steadyfetch/engine"
	"github.com/steadyfetch/steadyfetch/extract"
	"github.com/steadyfetch/steadyfetch/models"
	"github.com/steadyfetch/steadyfetch/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("steadyfetch starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	// ── 3. Initialise the domain circuit breaker ────────────────────
	br, err := breaker.New(breaker.Config{
		FailureThreshold:    cfg.Breaker.FailureThreshold,
		Cooldown:            cfg.Breaker.Cooldown,
		HalfOpenMaxAttempts: cfg.Breaker.HalfOpenMaxAttempts,
		ResetOnSuccess:      cfg.Breaker.ResetOnSuccess,
	})
	if err != nil {
		slog.Error("invalid breaker configuration", "error", err)
		os.Exit(1)
	}

	// ── 4. Initialise scraper (launches browser) ────────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper, cfg.Challenge, br, nil)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// ── 4b. Multi-engine dispatcher ─────────────────────────────────
	if cfg.Engine.EnableMultiEngine {
		// Browser callback wraps the scraper's direct browser path,
		// bypassing the dispatcher so the race cannot recurse.
		browserFetch := func(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
			scrapeReq := &models.ScrapeRequest{
				URL:     req.URL,
				Timeout: int(req.Timeout.Seconds()),
				Stealth: req.Stealth,
				Headers: req.Headers,
			}
			scrapeReq.Defaults()

			result, err := sc.DoScrapeBrowser(ctx, scrapeReq)
			if err != nil {
				return nil, err
			}
			return &engine.FetchResult{
				HTML:       result.RawHTML,
				Title:      result.Title,
				StatusCode: result.StatusCode,
				FinalURL:   result.FinalURL,
			}, nil
		}

		engines := []engine.Engine{
			engine.NewHTTPEngine(),
			engine.NewBrowserEngine(browserFetch, false),
			engine.NewBrowserEngine(browserFetch, true),
		}
		memory := engine.NewEngineMemory(cfg.Engine.MemoryTTL)
		defer memory.Stop()

		sc.SetDispatcher(engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, memory))
		slog.Info("multi-engine dispatcher enabled",
			"engines", len(engines),
			"delays", cfg.Engine.EscalationDelays,
		)
	}

	// ── 5. Extractor and cache ──────────────────────────────────────
	ex := extract.New()
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Stop()

	// ── 6. Router + HTTP server ─────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(sc, ex, cfg, cc, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("steadyfetch stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
