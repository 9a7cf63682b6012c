package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// OpenAIConfig configures an OpenAI compatible endpoint
type OpenAIConfig struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Temperature    float64
}

// OpenAIClient talks to any OpenAI compatible API
type OpenAIClient struct {
	client openai.Client
	cfg    OpenAIConfig
	logger *zap.Logger
}

// Ensure OpenAIClient implements Client interface.
var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new client
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		logger: logger,
	}
}

// Models returns the configured model names
func (c *OpenAIClient) Models() (string, string) {
	return c.cfg.ChatModel, c.cfg.EmbeddingModel
}

func (c *OpenAIClient) params(messages []Message, opts []Option) openai.ChatCompletionNewParams {
	temperature := c.cfg.Temperature
	o := applyOptions(Options{Model: c.cfg.ChatModel, Temperature: &temperature}, opts)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	if o.Temperature != nil {
		params.Temperature = openai.Float(*o.Temperature)
	}

	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	return params
}

// Complete sends a non streaming chat completion
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages, opts))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends a streaming chat completion
func (c *OpenAIClient) Stream(ctx context.Context, messages []Message, callback TokenCallback, opts ...Option) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages, opts))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if err := callback(content); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	return nil
}

// Embed embeds texts with the configured embedding model
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	vectors := make([][]float64, len(texts))
	for i, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(vectors) {
			idx = i
		}
		vectors[idx] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embeddings: missing vector %d", i)
		}
	}

	c.logger.Debug("Embedded texts", zap.Int("count", len(texts)), zap.String("model", c.cfg.EmbeddingModel))
	return vectors, nil
}
