package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/aktraiser/X-me/internal/api/respond"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/gin-gonic/gin"
)

// Auth returns an API key authentication middleware for the admin routes.
// An empty key disables the check.
func Auth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		// Get API key from header
		key := c.GetHeader("X-API-Key")
		if key == "" {
			// Also try Authorization header
			if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
				key = token
			}
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			respond.Error(c, domain.ErrUnauthorized)
			return
		}

		c.Next()
	}
}
