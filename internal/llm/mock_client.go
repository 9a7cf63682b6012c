package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// MockDimension is the size of the vectors returned by MockClient
const MockDimension = 64

// MockClient answers without a hosted model. It is used when no API key is
// configured so the server can run offline.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements Client interface.
var _ Client = (*MockClient)(nil)

// Models returns mock model names
func (m *MockClient) Models() (string, string) {
	return "mock-chat", "mock-embedding"
}

// Complete returns a mock response.
func (m *MockClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.generateMockResponse(messages), nil
}

// Stream simulates a streaming response.
func (m *MockClient) Stream(ctx context.Context, messages []Message, callback TokenCallback, opts ...Option) error {
	for _, chunk := range splitWords(m.generateMockResponse(messages)) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := callback(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Embed returns bag of words vectors hashed into MockDimension buckets, so
// texts sharing words are close under cosine similarity.
func (m *MockClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, MockDimension)
		for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			h := fnv.New32a()
			h.Write([]byte(word))
			v[h.Sum32()%MockDimension]++
		}
		var norm float64
		for _, x := range v {
			norm += x * x
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range v {
				v[j] /= norm
			}
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *MockClient) generateMockResponse(messages []Message) string {
	var lastUserMessage string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			lastUserMessage = messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] Réponse générée sans modèle de langage."
	}

	return fmt.Sprintf("[MOCK] Message reçu : %q. Réponse générée sans modèle de langage.", truncate(lastUserMessage, 100))
}

// splitWords splits s after each space so that joining the parts gives s back
func splitWords(s string) []string {
	var chunks []string
	start := 0
	for i, r := range s {
		if r == ' ' {
			chunks = append(chunks, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		chunks = append(chunks, s[start:])
	}
	return chunks
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
