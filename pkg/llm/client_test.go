package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ZahraKhan-147/study-bot/internal/config"
)

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.7,
		TimeoutSecs: 5,
	}
}

func TestChatMessages_Success(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello there"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	reply, err := client.ChatMessages(context.Background(), []Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)

	require.Equal(t, "llama-3.3-70b-versatile", gotReq.Model)
	require.InDelta(t, 0.7, gotReq.Temperature, 1e-9)
	require.Len(t, gotReq.Messages, 2)
	require.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestChatMessages_Non200IsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.ChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.ErrorIs(t, err, ErrProvider)
	require.Contains(t, err.Error(), "rate limit exceeded")
}

func TestChatMessages_MalformedResponseIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not json"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.ChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.ErrorIs(t, err, ErrProvider)
}

func TestChatMessages_EmptyChoicesIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.ChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.ErrorIs(t, err, ErrProvider)
}

func TestChatMessages_ConnectionFailureIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // 立刻关掉，强制连接失败

	client := NewClient(testConfig(server.URL))
	_, err := client.ChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.ErrorIs(t, err, ErrProvider)
}
