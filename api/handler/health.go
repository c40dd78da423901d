package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steadyfetch/steadyfetch/breaker"
	"github.com/steadyfetch/steadyfetch/models"
	"github.com/steadyfetch/steadyfetch/scraper"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports pool utilisation and the number of breaker-open domains; status
// degrades when more than 80% of pages are active.
func Health(sc *scraper.Scraper, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}

		openDomains := 0
		if br := sc.Breaker(); br != nil {
			for _, st := range br.Snapshot() {
				if st.State == breaker.StateOpen {
					openDomains++
				}
			}
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			PoolStats:   stats,
			OpenDomains: openDomains,
			Version:     "0.1.0",
		})
	}
}
