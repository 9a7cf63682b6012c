package admin

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/aktraiser/X-me/internal/api/respond"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/service"
	"github.com/gin-gonic/gin"
)

// Handler handles admin API requests
type Handler struct {
	adminService *service.AdminService
}

// NewHandler creates a new admin handler
func NewHandler(adminService *service.AdminService) *Handler {
	return &Handler{adminService: adminService}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	experts := r.Group("/experts")
	{
		experts.POST("", h.CreateExpert)
		experts.GET("", h.ListExperts)
		experts.POST("/import", h.ImportExperts)
		experts.GET("/:id", h.GetExpert)
		experts.DELETE("/:id", h.DeleteExpert)
	}

	r.POST("/sectors/ingest", h.IngestSector)
	r.GET("/stats", h.GetStats)
}

// Expert handlers

func (h *Handler) CreateExpert(c *gin.Context) {
	var req domain.CreateExpertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	expert, err := h.adminService.CreateExpert(c.Request.Context(), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, expert)
}

func (h *Handler) ListExperts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	experts, err := h.adminService.ListExperts(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"experts": experts})
}

func (h *Handler) GetExpert(c *gin.Context) {
	expert, err := h.adminService.GetExpert(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, expert)
}

func (h *Handler) DeleteExpert(c *gin.Context) {
	if err := h.adminService.DeleteExpert(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "expert deleted"})
}

func (h *Handler) ImportExperts(c *gin.Context) {
	// Get file from form
	file, err := c.FormFile("file")
	if err != nil {
		respond.BadRequest(c, fmt.Errorf("file is required"))
		return
	}

	src, err := file.Open()
	if err != nil {
		respond.Error(c, err)
		return
	}
	defer src.Close()

	result, err := h.adminService.ImportExperts(c.Request.Context(), src)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Sector handlers

func (h *Handler) IngestSector(c *gin.Context) {
	var req domain.SectorIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	resp, err := h.adminService.IngestSector(c.Request.Context(), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Stats handler

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
