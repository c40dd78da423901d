package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/steadyfetch/steadyfetch/challenge"
	"github.com/steadyfetch/steadyfetch/engine"
	"github.com/steadyfetch/steadyfetch/interact"
	"github.com/steadyfetch/steadyfetch/models"
)

// ScrapeResult is the raw acquisition outcome, before content extraction.
type ScrapeResult struct {
	RawHTML     string
	Title       string
	StatusCode  int
	FinalURL    string
	EngineUsed  string
	Challenge   *models.ChallengeReport
	Interaction *models.InteractionReport
}

// DoScrape is the top-level acquisition orchestrator.
//
// Every request passes the per-domain circuit breaker first. Requests that
// need a live browser session (interaction, behavior simulation, forced
// browser mode) go straight to the rod path; everything else is offered to
// the multi-engine dispatcher when one is configured, with the rod path as
// fallback. The breaker sees exactly one success or failure per request.
func (s *Scraper) DoScrape(ctx context.Context, req *models.ScrapeRequest) (*ScrapeResult, error) {
	domain := domainOf(req.URL)

	// ── 1. Circuit breaker gate ──────────────────────────────────────
	if s.breaker != nil {
		allowed, err := s.breaker.CanRequest(domain)
		if err != nil {
			return nil, models.NewScrapeError(
				models.ErrCodeInvalidInput, "invalid target URL", err)
		}
		if !allowed {
			remaining, _ := s.breaker.CooldownRemaining(domain)
			return nil, models.NewStageError(
				models.ErrCodeDomainBlocked,
				models.StageAcquire,
				fmt.Sprintf("domain %s is temporarily blocked (retry in %s)", domain, remaining.Round(time.Second)),
				nil,
			)
		}
	}

	result, err := s.scrape(ctx, req)

	// ── 2. Breaker bookkeeping ───────────────────────────────────────
	// Client mistakes (bad selectors etc.) say nothing about the domain's
	// health and are not recorded.
	if s.breaker != nil {
		if err != nil {
			var se *models.ScrapeError
			if errors.As(err, &se) && se.Code == models.ErrCodeInvalidInput {
				return result, err
			}
			if recErr := s.breaker.RecordFailure(domain); recErr != nil {
				slog.Warn("breaker: record failure", "domain", domain, "error", recErr)
			}
		} else {
			if recErr := s.breaker.RecordSuccess(domain); recErr != nil {
				slog.Warn("breaker: record success", "domain", domain, "error", recErr)
			}
		}
	}

	return result, err
}

// scrape routes the request to the cheapest capable path.
func (s *Scraper) scrape(ctx context.Context, req *models.ScrapeRequest) (*ScrapeResult, error) {
	timeout := s.clampTimeout(req)

	needsBrowserSession := req.FetchMode == "browser" ||
		req.SimulateBehavior ||
		(req.Interaction != nil && req.Interaction.Enabled())

	// A per-request proxy can only be honored on the plain HTTP path: the
	// shared browser's proxy is fixed at launch. Refuse the combination
	// instead of silently sending unproxied traffic.
	if req.ProxyURL != "" {
		if needsBrowserSession {
			return nil, models.NewStageError(
				models.ErrCodeInvalidInput,
				models.StageAcquire,
				"proxy_url requires the http fetch path; browser sessions use the configured default proxy",
				nil,
			)
		}
		return s.scrapeHTTP(ctx, req, timeout)
	}

	if req.FetchMode == "http" && !needsBrowserSession {
		return s.scrapeHTTP(ctx, req, timeout)
	}

	if s.dispatcher != nil && !needsBrowserSession {
		fetchReq := &engine.FetchRequest{
			URL:     req.URL,
			Headers: req.Headers,
			Timeout: timeout,
			Stealth: req.Stealth,
		}

		dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := s.dispatcher.Dispatch(dispatchCtx, fetchReq)
		if err == nil {
			return &ScrapeResult{
				RawHTML:    result.HTML,
				Title:      result.Title,
				StatusCode: result.StatusCode,
				FinalURL:   result.FinalURL,
				EngineUsed: result.EngineName,
			}, nil
		}
		slog.Warn("dispatcher failed, falling back to direct browser scrape",
			"url", req.URL, "error", err)
	}

	return s.doScrapeBrowser(ctx, req, timeout)
}

// scrapeHTTP serves fetch_mode=http via the plain HTTP engine, with no
// browser involvement and no escalation.
func (s *Scraper) scrapeHTTP(ctx context.Context, req *models.ScrapeRequest, timeout time.Duration) (*ScrapeResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.httpEngine.Fetch(fetchCtx, &engine.FetchRequest{
		URL:      req.URL,
		Headers:  req.Headers,
		Timeout:  timeout,
		ProxyURL: req.ProxyURL,
	})
	if err != nil {
		return nil, categorizeError(err, "http fetch failed")
	}
	return &ScrapeResult{
		RawHTML:    result.HTML,
		Title:      result.Title,
		StatusCode: result.StatusCode,
		FinalURL:   result.FinalURL,
		EngineUsed: result.EngineName,
	}, nil
}

// DoScrapeBrowser is the direct browser path. Exported so the dispatcher's
// browser engines can call it without re-entering DoScrape (which would gate
// and record on the breaker twice).
func (s *Scraper) DoScrapeBrowser(ctx context.Context, req *models.ScrapeRequest) (*ScrapeResult, error) {
	return s.doScrapeBrowser(ctx, req, s.clampTimeout(req))
}

// doScrapeBrowser runs the full browser acquisition flow.
//
// Lifecycle:
//
//  1. Timeout guard       – hard deadline on the whole operation
//  2. Acquire page        – borrow a tab from the pool
//  3. DEFER: cleanup      – about:blank + return to pool
//  4. Stealth + headers   – must precede navigation to take effect
//  5. Hijack mount        – resource and tracker blocking, also pre-navigation
//  6. Navigate + settle   – load the page, wait for the DOM to stop churning
//  7. Challenge gate      – detect and wait out anti-bot interstitials
//  8. Behavior            – human-like scroll noise, when requested
//  9. Interaction         – bounded network-idle/scroll/load-more loops
//  10. Extract            – rendered HTML, title, final URL
//
// The cleanup defer uses the original page reference, not the context-bound
// one, so the tab is recycled even after the request deadline has passed.
func (s *Scraper) doScrapeBrowser(ctx context.Context, req *models.ScrapeRequest, timeout time.Duration) (*ScrapeResult, error) {
	// ── 1. Timeout guard ─────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Acquire page from pool ────────────────────────────────────
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, acquireErr := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewStageError(
			models.ErrCodeBrowserCrash,
			models.StageAcquire,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	// ── 3. Cleanup: drop the DOM and return the tab ──────────────────
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	// ── 4. Stealth injection ─────────────────────────────────────────
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	// ── 4b. Extra headers (custom + search-engine referer) ───────────
	extraHeaders := make(map[string]string, len(req.Headers)+1)
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if u, parseErr := url.Parse(req.URL); parseErr == nil {
			extraHeaders["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range req.Headers {
		extraHeaders[k] = v
	}
	if len(extraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(extraHeaders),
		}.Call(page)
	}

	// ── 5. Hijack router ─────────────────────────────────────────────
	router := setupHijack(page, s.scraperCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)
	tab := &rodTab{page: page}

	// ── 6. Navigate + settle ─────────────────────────────────────────
	if navErr := p.Navigate(req.URL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}
	if s.scraperCfg.SettleDelay > 0 {
		if err := sleepCtx(ctx, s.scraperCfg.SettleDelay); err != nil {
			return nil, categorizeError(err, "settle delay interrupted")
		}
	}

	statusCode := readStatusCode(p)

	// ── 7. Challenge gate ────────────────────────────────────────────
	challengeReport, challengeErr := s.runChallengeGate(ctx, tab, req)
	if challengeErr != nil {
		return nil, challengeErr
	}

	// ── 8. Behavior simulation ───────────────────────────────────────
	if req.SimulateBehavior {
		if simErr := s.simulator.Simulate(ctx, p); simErr != nil {
			if ctx.Err() != nil {
				return nil, categorizeError(ctx.Err(), "behavior simulation interrupted")
			}
			slog.Debug("behavior simulation failed, continuing", "error", simErr)
		}
	}

	// ── 9. Interaction loops ─────────────────────────────────────────
	interactionReport, interactErr := s.runInteraction(ctx, tab, req)
	if interactErr != nil {
		return nil, interactErr
	}

	// ── 10. Extract rendered HTML ────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &ScrapeResult{
		RawHTML:     rawHTML,
		Title:       title,
		StatusCode:  statusCode,
		FinalURL:    finalURL,
		EngineUsed:  "browser",
		Challenge:   challengeReport,
		Interaction: interactionReport,
	}, nil
}

// runChallengeGate detects anti-bot interstitials and, unless disabled on the
// request, waits them out. An unresolved challenge fails the scrape; a failed
// detection probe only logs, since most pages have no challenge at all.
func (s *Scraper) runChallengeGate(ctx context.Context, tab *rodTab, req *models.ScrapeRequest) (*models.ChallengeReport, error) {
	det, detErr := s.detector.Detect(ctx, tab)
	if detErr != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "challenge detection interrupted")
		}
		slog.Debug("challenge detection failed, assuming none", "url", req.URL, "error", detErr)
		return nil, nil
	}
	if !det.IsChallenge {
		return nil, nil
	}

	report := &models.ChallengeReport{
		Detected:   true,
		Type:       det.Type,
		Confidence: det.Confidence,
	}

	handleEnabled := req.HandleChallenges == nil || *req.HandleChallenges
	if !handleEnabled {
		return nil, models.NewStageError(
			models.ErrCodeChallengeUnresolved,
			models.StageChallenge,
			fmt.Sprintf("challenge detected (%s) and handling disabled", det.Type),
			nil,
		)
	}

	handling, err := s.challenges.Handle(ctx, tab, det, challenge.HandleConfig{
		Captcha:         s.challengeCfg.CaptchaProvider,
		CaptchaFallback: s.challengeCfg.CaptchaFallback,
		MaxWait:         s.challengeCfg.MaxWait,
		PollInterval:    s.challengeCfg.PollInterval,
	})
	if err != nil {
		return nil, categorizeError(err, "challenge handling failed")
	}

	report.Resolved = handling.Resolved
	report.Method = handling.Method
	report.WaitedMs = handling.Waited.Milliseconds()

	if !handling.Resolved {
		return nil, models.NewStageError(
			models.ErrCodeChallengeUnresolved,
			models.StageChallenge,
			fmt.Sprintf("challenge (%s) did not clear within the wait budget", det.Type),
			nil,
		)
	}
	return report, nil
}

// runInteraction drives the requested bounded loops in order: network idle,
// scroll, load more. Budget-exhaustion reasons are informational; only tab
// evaluation failures abort the scrape.
func (s *Scraper) runInteraction(ctx context.Context, tab *rodTab, req *models.ScrapeRequest) (*models.InteractionReport, error) {
	if req.Interaction == nil || !req.Interaction.Enabled() {
		return nil, nil
	}

	report := &models.InteractionReport{}
	opts := req.Interaction

	if opts.NetworkIdle != nil {
		cfg := interact.NormalizeNetworkIdleConfig(opts.NetworkIdle)
		res, err := interact.WaitForNetworkIdle(ctx, tab, cfg)
		if err != nil {
			return nil, interactionError("network idle wait failed", err)
		}
		report.NetworkIdle = &models.NetworkIdleReport{
			Idle:     res.Idle,
			WaitedMs: res.Waited.Milliseconds(),
			Polls:    res.Polls,
			Reason:   string(res.Reason),
		}
	}

	if opts.Scroll != nil {
		cfg := interact.NormalizeScrollConfig(opts.Scroll)
		res, err := interact.ScrollToBottom(ctx, tab, cfg)
		if err != nil {
			return nil, interactionError("scroll loop failed", err)
		}
		report.Scroll = &models.ScrollReport{
			Iterations:        res.Iterations,
			Reason:            string(res.Reason),
			FinalScrollHeight: res.FinalScrollHeight,
		}
	}

	if opts.LoadMoreSelector != "" {
		cfg, err := interact.NormalizeLoadMoreConfig(opts.LoadMore)
		if err != nil {
			return nil, models.NewStageError(
				models.ErrCodeInvalidInput,
				models.StageInteraction,
				"invalid load-more options",
				err,
			)
		}
		res, err := interact.ClickLoadMore(ctx, tab, opts.LoadMoreSelector, cfg)
		if err != nil {
			return nil, interactionError("load-more loop failed", err)
		}
		report.LoadMore = &models.LoadMoreReport{
			Clicks: res.Clicks,
			Reason: string(res.Reason),
		}
	}

	return report, nil
}

func interactionError(msg string, err error) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewStageError(models.ErrCodeTimeout, models.StageInteraction, msg, err)
	}
	return models.NewStageError(models.ErrCodeInteractionFailed, models.StageInteraction, msg, err)
}

// clampTimeout converts the request timeout to a duration bounded by the
// configured maximum, falling back to the default when unset.
func (s *Scraper) clampTimeout(req *models.ScrapeRequest) time.Duration {
	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 {
		timeout = s.scraperCfg.DefaultTimeout
	}
	if timeout > s.scraperCfg.MaxTimeout {
		timeout = s.scraperCfg.MaxTimeout
	}
	return timeout
}

// readStatusCode fetches the navigation HTTP status from the performance API,
// avoiding CDP network listeners that conflict with the hijack router.
func readStatusCode(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression, swallowing errors. Used for
// optional metadata only.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to HTTP status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
