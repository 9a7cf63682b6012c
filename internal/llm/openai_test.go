package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(OpenAIConfig{
		BaseURL:        srv.URL + "/v1/",
		APIKey:         "sk-test",
		ChatModel:      "gpt-test",
		EmbeddingModel: "embed-test",
		Temperature:    0.2,
	}, zap.NewNop())
}

func TestOpenAIClient_Stream(t *testing.T) {
	var body map[string]any
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Bon", "jour", ""} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-test\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var got []string
	err := c.Stream(context.Background(), []Message{System("s"), User("u")}, func(chunk string) error {
		got = append(got, chunk)
		return nil
	}, WithModel("gpt-override"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Bon", "jour"}, got)
	assert.Equal(t, "gpt-override", body["model"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-9)
	assert.Len(t, body["messages"], 2)
}

func TestOpenAIClient_Complete(t *testing.T) {
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"primaryIntent\":\"HYBRID\"}"}}]}`)
	})

	out, err := c.Complete(context.Background(), []Message{User("u")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"primaryIntent":"HYBRID"}`, out)
}

func TestOpenAIClient_Embed(t *testing.T) {
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		w.Header().Set("Content-Type", "application/json")
		// out of order on purpose
		fmt.Fprint(w, `{"object":"list","model":"embed-test","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	})

	vectors, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)

	chat, embed := c.Models()
	assert.Equal(t, "gpt-test", chat)
	assert.Equal(t, "embed-test", embed)
}

func TestOpenAIClient_Error(t *testing.T) {
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	_, err := c.Complete(context.Background(), []Message{User("u")})
	assert.Error(t, err)
}
