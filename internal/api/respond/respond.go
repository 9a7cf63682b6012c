// Package respond writes JSON error responses for the API handlers.
package respond

import (
	"errors"
	"net/http"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/gin-gonic/gin"
)

// Status maps a service error to an HTTP status code
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNoLLM):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error aborts the request with {"error": message}
func Error(c *gin.Context, err error) {
	c.AbortWithStatusJSON(Status(err), gin.H{"error": err.Error()})
}

// BadRequest aborts the request with a 400 and the binding error
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
