// Package client talks to the X-me HTTP API and reads its event streams.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aktraiser/X-me/internal/domain"
)

// Event is one server-sent event of a chat stream
type Event struct {
	Type              string          `json:"type"`
	MessageID         string          `json:"messageId,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	IllustrationImage string          `json:"illustrationImage,omitempty"`
	ImageTitle        string          `json:"imageTitle,omitempty"`
}

// Text returns the chunk of a response event or the message of an error event
func (e Event) Text() string {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return ""
	}
	return s
}

// Sources decodes the data of a sources event
func (e Event) Sources() ([]domain.Source, error) {
	var sources []domain.Source
	if len(e.Data) == 0 {
		return sources, nil
	}
	if err := json.Unmarshal(e.Data, &sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return sources, nil
}

// Suggestions decodes the data of a suggestions event
func (e Event) Suggestions() (*domain.SuggestionsData, error) {
	var s domain.SuggestionsData
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return &s, nil
}

// EventHandler is called for each event of a stream
type EventHandler func(event Event) error

// StreamInfo carries the identifiers returned with a stream
type StreamInfo struct {
	ChatID    string
	MessageID string
}

// Client calls the chat API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client for the server at baseURL
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Stream posts a chat request and calls handler for every event until the
// stream ends.
func (c *Client) Stream(ctx context.Context, req domain.ChatRequest, handler EventHandler) (*StreamInfo, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	info := &StreamInfo{
		ChatID:    resp.Header.Get("X-Chat-Id"),
		MessageID: resp.Header.Get("X-Message-Id"),
	}
	return info, parseSSE(resp.Body, handler)
}

// Sectors returns the sector catalog
func (c *Client) Sectors(ctx context.Context) ([]domain.Sector, error) {
	var out struct {
		Sectors []domain.Sector `json:"sectors"`
	}
	if err := c.getJSON(ctx, "/api/sectors", &out); err != nil {
		return nil, err
	}
	return out.Sectors, nil
}

// Chats returns the most recent chats
func (c *Client) Chats(ctx context.Context) ([]domain.Chat, error) {
	var out struct {
		Chats []domain.Chat `json:"chats"`
	}
	if err := c.getJSON(ctx, "/api/chats", &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

// parseSSE reads an event stream and decodes the JSON data of each event
func parseSSE(r io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var name string
	var data strings.Builder
	dispatch := func() error {
		defer func() {
			name = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return nil
		}
		var ev Event
		if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
			return fmt.Errorf("decode %s event: %w", name, err)
		}
		if ev.Type == "" {
			ev.Type = name
		}
		return handler(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return dispatch()
}
