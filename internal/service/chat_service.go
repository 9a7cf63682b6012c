package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/repository"
	"go.uber.org/zap"
)

const (
	chatTitleRunes = 60
	persistedTurns = 20
)

// ErrAnswerFailed is returned when the answer stream ended with an error
var ErrAnswerFailed = errors.New("answer failed")

// Stream is an answer being produced for a chat
type Stream struct {
	ChatID    string
	MessageID string
	Events    <-chan domain.StreamEvent
}

// ChatService persists chats around the orchestrator
type ChatService struct {
	chatRepo     *repository.ChatRepository
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(chatRepo *repository.ChatRepository, orchestrator *Orchestrator, logger *zap.Logger) *ChatService {
	return &ChatService{
		chatRepo:     chatRepo,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// ChatStream saves the user message and starts answering it. The assistant
// message is saved once the answer completed.
func (s *ChatService) ChatStream(ctx context.Context, req *domain.ChatRequest) (*Stream, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("empty message: %w", domain.ErrInvalidRequest)
	}

	chat, err := s.getOrCreateChat(req)
	if err != nil {
		return nil, err
	}

	history := req.History
	if len(history) == 0 {
		if history, err = s.persistedHistory(chat.ID); err != nil {
			return nil, err
		}
	}

	answerReq := AnswerRequest{
		MessageID:        req.MessageID,
		Message:          req.Message,
		History:          history,
		FocusMode:        req.FocusMode,
		OptimizationMode: req.OptimizationMode,
		Files:            req.Files,
	}
	if len(answerReq.Files) == 0 {
		answerReq.Files = chat.Files
	}
	if err := answerReq.Normalize(); err != nil {
		return nil, err
	}

	// Save user message
	userMsg := &domain.Message{
		ChatID:  chat.ID,
		Role:    domain.RoleUser,
		Content: req.Message,
	}
	if err := s.chatRepo.CreateMessage(userMsg); err != nil {
		return nil, err
	}

	events, err := s.orchestrator.Answer(ctx, answerReq)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamEvent, cap(events))
	go s.tee(ctx, chat.ID, events, out)

	return &Stream{ChatID: chat.ID, MessageID: answerReq.MessageID, Events: out}, nil
}

// Chat answers a message and returns the whole answer at once
func (s *ChatService) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	stream, err := s.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := Collect(stream.Events)
	if err != nil {
		return nil, err
	}
	resp.ChatID = stream.ChatID
	resp.MessageID = stream.MessageID
	return resp, nil
}

// Collect drains an answer stream into a response
func Collect(events <-chan domain.StreamEvent) (*domain.ChatResponse, error) {
	resp := &domain.ChatResponse{Sources: []domain.Source{}}
	var answer strings.Builder
	ended := false
	for ev := range events {
		switch ev.Type {
		case domain.EventSources:
			if sources, ok := ev.Data.([]domain.Source); ok && sources != nil {
				resp.Sources = sources
			}
			resp.IllustrationImage = ev.IllustrationImage
			resp.ImageTitle = ev.ImageTitle
		case domain.EventResponse:
			if token, ok := ev.Data.(string); ok {
				answer.WriteString(token)
			}
		case domain.EventSuggestions:
			if data, ok := ev.Data.(domain.SuggestionsData); ok {
				resp.Suggestions = data.Suggestions
				resp.SuggestedExperts = data.SuggestedExperts
			}
		case domain.EventError:
			return nil, fmt.Errorf("%v: %w", ev.Data, ErrAnswerFailed)
		case domain.EventEnd:
			ended = true
		}
	}
	if !ended {
		return nil, fmt.Errorf("stream closed before the end: %w", ErrAnswerFailed)
	}
	resp.Answer = answer.String()
	return resp, nil
}

// tee forwards the events and saves the assistant message on success
func (s *ChatService) tee(ctx context.Context, chatID string, in <-chan domain.StreamEvent, out chan<- domain.StreamEvent) {
	defer close(out)

	msg := &domain.Message{ChatID: chatID, Role: domain.RoleAssistant}
	var answer strings.Builder
	for ev := range in {
		switch ev.Type {
		case domain.EventSources:
			msg.Sources, _ = ev.Data.([]domain.Source)
		case domain.EventResponse:
			token, _ := ev.Data.(string)
			answer.WriteString(token)
		case domain.EventSuggestions:
			if data, ok := ev.Data.(domain.SuggestionsData); ok {
				msg.Suggestions = data.Suggestions
			}
		case domain.EventEnd:
			msg.ID = ev.MessageID
			msg.Content = answer.String()
			s.saveAnswer(msg)
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			// keep draining so the producer can exit
		}
	}
}

func (s *ChatService) saveAnswer(msg *domain.Message) {
	if err := s.chatRepo.CreateMessage(msg); err != nil {
		s.logger.Error("Failed to save assistant message", zap.String("chat_id", msg.ChatID), zap.Error(err))
		return
	}
	if err := s.chatRepo.Touch(msg.ChatID); err != nil {
		s.logger.Warn("Failed to touch chat", zap.String("chat_id", msg.ChatID), zap.Error(err))
	}
}

func (s *ChatService) getOrCreateChat(req *domain.ChatRequest) (*domain.Chat, error) {
	if req.ChatID != "" {
		chat, err := s.chatRepo.Get(req.ChatID)
		if err != nil {
			return nil, err
		}
		if chat != nil {
			return chat, nil
		}
	}

	chat := &domain.Chat{
		ID:        req.ChatID,
		Title:     truncateRunes(ParseMessage(req.Message).Query, chatTitleRunes),
		FocusMode: req.FocusMode,
		Files:     req.Files,
	}
	if err := s.chatRepo.Create(chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) persistedHistory(chatID string) ([]domain.HistoryItem, error) {
	messages, err := s.chatRepo.GetMessages(chatID)
	if err != nil {
		return nil, err
	}
	if len(messages) > persistedTurns {
		messages = messages[len(messages)-persistedTurns:]
	}
	history := make([]domain.HistoryItem, 0, len(messages))
	for _, m := range messages {
		history = append(history, domain.HistoryItem{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

// ListChats returns the most recent chats
func (s *ChatService) ListChats(limit int) ([]*domain.Chat, error) {
	return s.chatRepo.List(limit)
}

// GetChat returns a chat with its messages
func (s *ChatService) GetChat(id string) (*domain.ChatDetail, error) {
	chat, err := s.chatRepo.Get(id)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}

	messages, err := s.chatRepo.GetMessages(id)
	if err != nil {
		return nil, err
	}
	return &domain.ChatDetail{Chat: chat, Messages: messages}, nil
}

// DeleteChat deletes a chat and its messages
func (s *ChatService) DeleteChat(id string) error {
	return s.chatRepo.Delete(id)
}
