package catalog

import (
	"net/http"

	"github.com/aktraiser/X-me/internal/service"
	"github.com/gin-gonic/gin"
)

// Handler serves the sector catalog and the model configuration
type Handler struct {
	catalogService *service.CatalogService
}

// NewHandler creates a new catalog handler
func NewHandler(catalogService *service.CatalogService) *Handler {
	return &Handler{catalogService: catalogService}
}

// RegisterRoutes registers catalog routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/sectors", h.GetSectors)
	r.GET("/models", h.GetModels)
}

// GetSectors returns the sectors and their subsectors
func (h *Handler) GetSectors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sectors": h.catalogService.GetSectors(c.Request.Context())})
}

// GetModels returns the chat and embedding models
func (h *Handler) GetModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalogService.GetModels(c.Request.Context()))
}
