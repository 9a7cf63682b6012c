package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/google/uuid"
)

// ChatRepository handles chat history persistence
type ChatRepository struct {
	db *DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create creates a new chat
func (r *ChatRepository) Create(chat *domain.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	filesJSON, _ := json.Marshal(chat.Files)

	_, err := r.db.Exec(`
		INSERT INTO chats (id, title, focus_mode, files, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, chat.ID, chat.Title, chat.FocusMode, string(filesJSON), chat.CreatedAt, chat.UpdatedAt)

	return err
}

// Get retrieves a chat by ID
func (r *ChatRepository) Get(id string) (*domain.Chat, error) {
	chat := &domain.Chat{}
	var filesJSON sql.NullString

	err := r.db.QueryRow(`
		SELECT id, title, focus_mode, files, created_at, updated_at
		FROM chats WHERE id = ?
	`, id).Scan(&chat.ID, &chat.Title, &chat.FocusMode, &filesJSON, &chat.CreatedAt, &chat.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if filesJSON.Valid && filesJSON.String != "" {
		json.Unmarshal([]byte(filesJSON.String), &chat.Files)
	}

	return chat, nil
}

// List retrieves chats, most recently updated first
func (r *ChatRepository) List(limit int) ([]*domain.Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, title, focus_mode, files, created_at, updated_at
		FROM chats ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []*domain.Chat{}
	for rows.Next() {
		chat := &domain.Chat{}
		var filesJSON sql.NullString
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.FocusMode, &filesJSON,
			&chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, err
		}
		if filesJSON.Valid && filesJSON.String != "" {
			json.Unmarshal([]byte(filesJSON.String), &chat.Files)
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

// Touch updates a chat's updated_at timestamp
func (r *ChatRepository) Touch(id string) error {
	_, err := r.db.Exec(`UPDATE chats SET updated_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// Delete deletes a chat and its messages
func (r *ChatRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// CreateMessage creates a new message
func (r *ChatRepository) CreateMessage(message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()

	sourcesJSON, _ := json.Marshal(message.Sources)
	suggestionsJSON, _ := json.Marshal(message.Suggestions)

	_, err := r.db.Exec(`
		INSERT INTO messages (id, chat_id, role, content, sources, suggestions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, message.ID, message.ChatID, message.Role, message.Content,
		string(sourcesJSON), string(suggestionsJSON), message.CreatedAt)

	return err
}

// GetMessages retrieves all messages for a chat
func (r *ChatRepository) GetMessages(chatID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(`
		SELECT id, chat_id, role, content, sources, suggestions, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY created_at ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		message := &domain.Message{}
		var sourcesJSON, suggestionsJSON sql.NullString

		if err := rows.Scan(&message.ID, &message.ChatID, &message.Role,
			&message.Content, &sourcesJSON, &suggestionsJSON, &message.CreatedAt); err != nil {
			return nil, err
		}

		if sourcesJSON.Valid && sourcesJSON.String != "" {
			json.Unmarshal([]byte(sourcesJSON.String), &message.Sources)
		}
		if suggestionsJSON.Valid && suggestionsJSON.String != "" {
			json.Unmarshal([]byte(suggestionsJSON.String), &message.Suggestions)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// CountChats returns the total number of chats
func (r *ChatRepository) CountChats() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of user messages
func (r *ChatRepository) CountMessages() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE role = 'user'`).Scan(&count)
	return count, err
}
