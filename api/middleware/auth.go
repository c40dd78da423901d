package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/steadyfetch/steadyfetch/models"
)

// Auth returns API-key authentication middleware. Keys are accepted from
// either X-API-Key or Authorization: Bearer. An empty key list disables
// authentication entirely (open access).
func Auth(apiKeys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := requestAPIKey(c)
		switch {
		case key == "":
			unauthorized(c, "missing API key: provide X-API-Key or Authorization: Bearer <key>")
		default:
			if _, ok := allowed[key]; !ok {
				unauthorized(c, "invalid API key")
				return
			}
			c.Set("api_key", key)
			c.Next()
		}
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ScrapeResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}

func requestAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	const bearer = "Bearer "
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, bearer) {
		return strings.TrimSpace(auth[len(bearer):])
	}
	return ""
}
