package domain

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Focus modes select the retrieval strategy of the orchestrator
const (
	FocusWebSearch      = "webSearch"
	FocusMarketResearch = "marketResearch"
	FocusUploads        = "uploads"
)

// Optimization modes trade latency for answer quality
const (
	ModeSpeed    = "speed"
	ModeBalanced = "balanced"
	ModeQuality  = "quality"
)

// Chat represents a conversation
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FocusMode string    `json:"focus_mode"`
	Files     []string  `json:"files,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message represents a chat message
type Message struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chat_id"`
	Role        string    `json:"role"` // user, assistant
	Content     string    `json:"content"`
	Sources     []Source  `json:"sources,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryItem is a prior turn sent by the client
type HistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request to send a chat message
type ChatRequest struct {
	ChatID           string        `json:"chatId,omitempty"`
	MessageID        string        `json:"messageId,omitempty"`
	Message          string        `json:"message" binding:"required"`
	History          []HistoryItem `json:"history,omitempty"`
	FocusMode        string        `json:"focusMode,omitempty"`
	OptimizationMode string        `json:"optimizationMode,omitempty"`
	Files            []string      `json:"files,omitempty"`
}

// ChatResponse is the aggregated response of a chat message
type ChatResponse struct {
	ChatID            string   `json:"chatId"`
	MessageID         string   `json:"messageId"`
	Answer            string   `json:"answer"`
	Sources           []Source `json:"sources"`
	Suggestions       []string `json:"suggestions,omitempty"`
	SuggestedExperts  []Expert `json:"suggestedExperts,omitempty"`
	IllustrationImage string   `json:"illustrationImage,omitempty"`
	ImageTitle        string   `json:"imageTitle,omitempty"`
}

// Stream event types
const (
	EventSources     = "sources"
	EventResponse    = "response"
	EventSuggestions = "suggestions"
	EventEnd         = "end"
	EventError       = "error"
)

// StreamEvent is one event of the answer stream
type StreamEvent struct {
	Type              string `json:"type"`
	MessageID         string `json:"messageId,omitempty"`
	Data              any    `json:"data,omitempty"`
	IllustrationImage string `json:"illustrationImage,omitempty"`
	ImageTitle        string `json:"imageTitle,omitempty"`
}

// SuggestionsData is the payload of a suggestions event
type SuggestionsData struct {
	Suggestions      []string `json:"suggestions"`
	SuggestedExperts []Expert `json:"suggestedExperts"`
}

// Stats represents system statistics
type Stats struct {
	TotalChats    int `json:"total_chats"`
	TotalMessages int `json:"total_messages"`
	TotalExperts  int `json:"total_experts"`
	TotalUploads  int `json:"total_uploads"`
	SectorChunks  int `json:"sector_chunks"`
}

// ChatDetail is a chat with its messages
type ChatDetail struct {
	Chat     *Chat      `json:"chat"`
	Messages []*Message `json:"messages"`
}
