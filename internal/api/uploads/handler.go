package uploads

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/aktraiser/X-me/internal/api/respond"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/service"
	"github.com/gin-gonic/gin"
)

// Handler handles upload requests
type Handler struct {
	uploadService *service.UploadService
}

// NewHandler creates a new upload handler
func NewHandler(uploadService *service.UploadService) *Handler {
	return &Handler{uploadService: uploadService}
}

// RegisterRoutes registers upload routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Upload)
	r.GET("/:id/content", h.Content)
}

// Upload stores the files of the multipart field "files"
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respond.BadRequest(c, fmt.Errorf("multipart form expected: %w", err))
		return
	}

	files, err := h.uploadService.Upload(c.Request.Context(), form.File["files"])
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// Content returns the chunks of one page of an upload
func (h *Handler) Content(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		respond.Error(c, fmt.Errorf("page %q: %w", c.Query("page"), domain.ErrInvalidRequest))
		return
	}

	content, err := h.uploadService.Page(c.Param("id"), page)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, content)
}
