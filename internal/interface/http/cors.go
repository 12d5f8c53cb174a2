package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods  = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders  = "Content-Type"
	corsExposeHeaders = "Retry-After"
	corsMaxAge        = "600"
)

// originPolicy decides which browser origins may read API responses. An
// empty list or a "*" entry allows every origin.
type originPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newOriginPolicy(allowed []string) originPolicy {
	policy := originPolicy{origins: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		switch origin {
		case "":
		case "*":
			policy.any = true
		default:
			policy.origins[origin] = struct{}{}
		}
	}
	if len(policy.origins) == 0 {
		policy.any = true
	}
	return policy
}

// allow returns the Access-Control-Allow-Origin value for origin, or false
// when the origin is not permitted.
func (p originPolicy) allow(origin string) (string, bool) {
	if p.any {
		return "*", true
	}
	if origin == "" {
		return "", false
	}
	if _, ok := p.origins[strings.ToLower(origin)]; ok {
		return origin, true
	}
	return "", false
}

// corsMiddleware lets the walk list frontend call the API from its own origin.
// Preflight requests are answered here and never reach the handlers.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	policy := newOriginPolicy(allowed)
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		headers.Add("Vary", "Origin")
		if value, ok := policy.allow(c.GetHeader("Origin")); ok {
			headers.Set("Access-Control-Allow-Origin", value)
			headers.Set("Access-Control-Allow-Methods", corsAllowMethods)
			headers.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			headers.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			headers.Set("Access-Control-Max-Age", corsMaxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
