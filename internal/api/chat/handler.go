package chat

import (
	"io"
	"net/http"
	"strconv"

	"github.com/aktraiser/X-me/internal/api/respond"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Response headers carrying the ids of a streamed answer
const (
	HeaderChatID    = "X-Chat-Id"
	HeaderMessageID = "X-Message-Id"
)

// Handler handles chat API requests
type Handler struct {
	chatService *service.ChatService
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHandler creates a new chat handler. checkOrigin decides which browser
// origins may open the websocket.
func NewHandler(chatService *service.ChatService, checkOrigin func(origin string) bool, logger *zap.Logger) *Handler {
	return &Handler{
		chatService: chatService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || checkOrigin(origin)
			},
		},
		logger: logger,
	}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)
	r.POST("/chat/stream", h.ChatStream)

	chats := r.Group("/chats")
	{
		chats.GET("", h.ListChats)
		chats.GET("/:id", h.GetChat)
		chats.DELETE("/:id", h.DeleteChat)
	}
}

// Chat answers a message as a single JSON document
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChatStream answers a message as server-sent events
func (h *Handler) ChatStream(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	stream, err := h.chatService.ChatStream(c.Request.Context(), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header(HeaderChatID, stream.ChatID)
	c.Header(HeaderMessageID, stream.MessageID)

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-stream.Events
		if !ok {
			return false
		}
		c.SSEvent(ev.Type, ev)
		return true
	})
}

// ListChats returns the most recent chats
func (h *Handler) ListChats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	chats, err := h.chatService.ListChats(limit)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChat returns a chat and its messages
func (h *Handler) GetChat(c *gin.Context) {
	detail, err := h.chatService.GetChat(c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// DeleteChat deletes a chat
func (h *Handler) DeleteChat(c *gin.Context) {
	if err := h.chatService.DeleteChat(c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "chat deleted"})
}
