package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AllowedOrigin reports whether origin matches one of the allowed origins.
// "*" allows any origin and "*.example.com" any subdomain.
func AllowedOrigin(allowOrigins []string, origin string) bool {
	for _, o := range allowOrigins {
		switch {
		case o == "*" || o == origin:
			return true
		case strings.HasPrefix(o, "*.") && origin != "":
			if strings.HasSuffix(origin, o[1:]) {
				return true
			}
		}
	}
	return false
}

// CORS returns a CORS middleware
func CORS(allowOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if AllowedOrigin(allowOrigins, origin) {
			if origin != "" {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			} else {
				c.Header("Access-Control-Allow-Origin", "*")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			c.Header("Access-Control-Expose-Headers", "X-Chat-Id, X-Message-Id")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
