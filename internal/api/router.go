package api

import (
	"net/http"

	"github.com/aktraiser/X-me/internal/api/admin"
	"github.com/aktraiser/X-me/internal/api/catalog"
	"github.com/aktraiser/X-me/internal/api/chat"
	"github.com/aktraiser/X-me/internal/api/middleware"
	"github.com/aktraiser/X-me/internal/api/uploads"
	"github.com/aktraiser/X-me/internal/metrics"
	"github.com/aktraiser/X-me/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	MaxFileSize  int64
}

// Services groups the services behind the routes
type Services struct {
	Chat    *service.ChatService
	Uploads *service.UploadService
	Catalog *service.CatalogService
	Admin   *service.AdminService
}

// SetupRouter sets up the Gin router
func SetupRouter(services Services, m *metrics.Metrics, logger *zap.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger, m))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))
	if cfg.MaxFileSize > 0 {
		r.MaxMultipartMemory = cfg.MaxFileSize
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiGroup := r.Group("/api")

	chatHandler := chat.NewHandler(services.Chat, func(origin string) bool {
		return middleware.AllowedOrigin(cfg.AllowOrigins, origin)
	}, logger)
	chatHandler.RegisterRoutes(apiGroup)
	r.GET("/ws", chatHandler.WebSocket)

	catalog.NewHandler(services.Catalog).RegisterRoutes(apiGroup)
	uploads.NewHandler(services.Uploads).RegisterRoutes(apiGroup.Group("/uploads"))

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(services.Admin)
	adminGroup := apiGroup.Group("/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}
