package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steadyfetch/steadyfetch/models"
	"github.com/steadyfetch/steadyfetch/scraper"
)

// ListDomains returns a handler for GET /api/v1/domains. It reports the
// breaker state of every domain seen since startup.
func ListDomains(sc *scraper.Scraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		br := sc.Breaker()
		if br == nil {
			c.JSON(http.StatusOK, gin.H{"domains": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"domains": br.Snapshot()})
	}
}

type resetDomainsRequest struct {
	// Domain limits the reset to one domain; empty resets everything.
	Domain string `json:"domain,omitempty"`
}

// ResetDomains returns a handler for POST /api/v1/domains/reset. With a
// domain in the body only that circuit is cleared; otherwise all are.
func ResetDomains(sc *scraper.Scraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		br := sc.Breaker()
		if br == nil {
			c.JSON(http.StatusOK, gin.H{"reset": "none"})
			return
		}

		var req resetDomainsRequest
		// An empty body is valid and means reset-all.
		_ = c.ShouldBindJSON(&req)

		if req.Domain != "" {
			if err := br.Reset(req.Domain); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: err.Error(),
					},
				})
				return
			}
			c.JSON(http.StatusOK, gin.H{"reset": req.Domain})
			return
		}

		br.ResetAll()
		c.JSON(http.StatusOK, gin.H{"reset": "all"})
	}
}
