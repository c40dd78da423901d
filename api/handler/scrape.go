package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steadyfetch/steadyfetch/cache"
	"github.com/steadyfetch/steadyfetch/extract"
	"github.com/steadyfetch/steadyfetch/models"
	"github.com/steadyfetch/steadyfetch/scraper"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup when max_age is set.
//  3. Scraper.DoScrape   → rendered HTML + reports (records navigation_ms)
//  4. Extractor.Process  → markdown/html/text      (records extraction_ms)
//  5. Merge metadata, fill timing, respond.
func Scrape(sc *scraper.Scraper, ex *extract.Extractor, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Cache lookup ─────────────────────────────────────────
		cacheKey := cache.Key(req.URL, req.OutputFormat, req.ExtractMode, req.CSSSelector)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				cached.CacheStatus = "hit"
				cached.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		navStart := time.Now()
		result, err := sc.DoScrape(c.Request.Context(), &req)
		navigationMs := time.Since(navStart).Milliseconds()

		if err != nil {
			respondError(c, sc, req.URL, err, models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
			})
			return
		}

		// ── 4. Extract ──────────────────────────────────────────────
		extractStart := time.Now()
		resp, err := ex.Process(result.RawHTML, req.URL, extract.Options{
			OutputFormat: req.OutputFormat,
			ExtractMode:  req.ExtractMode,
			CSSSelector:  req.CSSSelector,
		})
		extractionMs := time.Since(extractStart).Milliseconds()

		if err != nil {
			respondError(c, sc, req.URL, err, models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
				ExtractionMs: extractionMs,
			})
			return
		}

		// ── 5. Merge + respond ──────────────────────────────────────
		// Readability usually finds a better title; the JS-evaluated
		// document.title covers the raw-HTML fallback.
		if resp.Metadata.Title == "" {
			resp.Metadata.Title = result.Title
		}

		resp.StatusCode = result.StatusCode
		resp.FinalURL = result.FinalURL
		resp.EngineUsed = result.EngineUsed
		resp.Challenge = result.Challenge
		resp.Interaction = result.Interaction
		resp.Timing = models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			NavigationMs: navigationMs,
			ExtractionMs: extractionMs,
		}

		if cc != nil && req.MaxAge > 0 {
			cc.Set(cacheKey, resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a ScrapeError to an HTTP status and writes a structured
// error body. Domain-blocked errors carry a Retry-After header with the
// remaining cooldown.
func respondError(c *gin.Context, sc *scraper.Scraper, targetURL string, err error, timing models.TimingInfo) {
	scrapeErr, ok := err.(*models.ScrapeError)
	if !ok {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	if scrapeErr.Code == models.ErrCodeDomainBlocked && sc != nil && sc.Breaker() != nil {
		if u, parseErr := url.Parse(targetURL); parseErr == nil {
			if remaining, brErr := sc.Breaker().CooldownRemaining(u.Hostname()); brErr == nil && remaining > 0 {
				secs := int64((remaining + time.Second - 1) / time.Second)
				c.Header("Retry-After", strconv.FormatInt(secs, 10))
			}
		}
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation,
		models.ErrCodeChallengeUnresolved,
		models.ErrCodeInteractionFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeDomainBlocked:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
