// Package api wires the HTTP surface: routing, auth, and rate limiting.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steadyfetch/steadyfetch/api/handler"
	"github.com/steadyfetch/steadyfetch/api/middleware"
	"github.com/steadyfetch/steadyfetch/cache"
	"github.com/steadyfetch/steadyfetch/config"
	"github.com/steadyfetch/steadyfetch/extract"
	"github.com/steadyfetch/steadyfetch/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(sc *scraper.Scraper, ex *extract.Extractor, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sc, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Scrape
	protected.POST("/scrape", handler.Scrape(sc, ex, cc))

	// Batch
	protected.POST("/batch/scrape", handler.PostBatch(sc, ex))
	protected.GET("/batch/:id", handler.GetBatch())

	// Domain breaker introspection
	protected.GET("/domains", handler.ListDomains(sc))
	protected.POST("/domains/reset", handler.ResetDomains(sc))

	return r
}
