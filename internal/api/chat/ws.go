package chat

import (
	"context"
	"time"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxFrameSize = 1 << 20
	writeTimeout = 10 * time.Second
)

// Frame is a websocket message sent to the client: an answer event tagged
// with its chat
type Frame struct {
	domain.StreamEvent
	ChatID string `json:"chatId,omitempty"`
}

// WebSocket serves chats over a websocket. Every text frame received is a
// chat request; its answer events are sent back as JSON frames before the
// next request is read.
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	for {
		var req domain.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read failed", zap.Error(err))
			}
			return
		}

		if err := h.answer(ctx, conn, &req); err != nil {
			h.logger.Warn("WebSocket write failed", zap.Error(err))
			return
		}
	}
}

// answer streams one answer. A rejected request is reported as an error
// frame and keeps the connection open.
func (h *Handler) answer(ctx context.Context, conn *websocket.Conn, req *domain.ChatRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := h.chatService.ChatStream(ctx, req)
	if err != nil {
		return write(conn, Frame{
			StreamEvent: domain.StreamEvent{Type: domain.EventError, MessageID: req.MessageID, Data: err.Error()},
			ChatID:      req.ChatID,
		})
	}

	for ev := range stream.Events {
		if err := write(conn, Frame{StreamEvent: ev, ChatID: stream.ChatID}); err != nil {
			cancel()
			for range stream.Events {
			}
			return err
		}
	}
	return nil
}

func write(conn *websocket.Conn, f Frame) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(f)
}
