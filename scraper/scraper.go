// Package scraper owns the browser lifecycle and the per-request acquisition
// flow: domain gating, page pooling, navigation, challenge handling, page
// interaction, and rendered-HTML extraction.
package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/steadyfetch/steadyfetch/behavior"
	"github.com/steadyfetch/steadyfetch/breaker"
	"github.com/steadyfetch/steadyfetch/challenge"
	"github.com/steadyfetch/steadyfetch/config"
	"github.com/steadyfetch/steadyfetch/engine"
	"github.com/steadyfetch/steadyfetch/models"
)

// Scraper manages the global browser and the reusable page pool.
// It is safe for concurrent use.
type Scraper struct {
	browser      *rod.Browser
	pagePool     rod.Pool[rod.Page]
	browserCfg   config.BrowserConfig
	scraperCfg   config.ScraperConfig
	challengeCfg config.ChallengeConfig

	breaker    *breaker.DomainBreaker
	detector   *challenge.Detector
	challenges *challenge.Handler
	simulator  *behavior.Simulator
	httpEngine *engine.HTTPEngine
	dispatcher *engine.Dispatcher

	activePages atomic.Int32
	startTime   time.Time
}

// NewScraper launches a headless browser and initialises the page pool.
// br gates every request per domain; solver may be nil when no captcha
// provider is configured.
func NewScraper(
	browserCfg config.BrowserConfig,
	scraperCfg config.ScraperConfig,
	challengeCfg config.ChallengeConfig,
	br *breaker.DomainBreaker,
	solver challenge.Solver,
) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(browserCfg.MaxPages)
	slog.Info("page pool created", "maxPages", browserCfg.MaxPages)

	detector := challenge.NewDetector()
	return &Scraper{
		browser:      browser,
		pagePool:     pool,
		browserCfg:   browserCfg,
		scraperCfg:   scraperCfg,
		challengeCfg: challengeCfg,
		breaker:      br,
		detector:     detector,
		challenges:   challenge.NewHandler(detector, solver),
		simulator:    behavior.NewSimulator(),
		httpEngine:   engine.NewHTTPEngine(),
		startTime:    time.Now(),
	}, nil
}

// SetDispatcher enables the multi-engine fast path. When set, DoScrape
// delegates simple requests to the dispatcher instead of always spending a
// browser tab.
func (s *Scraper) SetDispatcher(d *engine.Dispatcher) {
	s.dispatcher = d
}

// Breaker exposes the domain breaker for the API layer.
func (s *Scraper) Breaker() *breaker.DomainBreaker {
	return s.breaker
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.browserCfg.MaxPages,
		ActivePages: int(s.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process. Call on graceful
// shutdown to avoid zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("scraper shutting down: closing browser")
	s.browser.MustClose()
	slog.Info("scraper shutdown complete")
}
