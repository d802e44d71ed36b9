package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etcop/copilot-gateway/internal/profile"
)

func TestNewTitleGeneratorDisabledWithoutAPIKey(t *testing.T) {
	tg := NewTitleGenerator(&profile.Profile{})
	assert.Nil(t, tg)
}

func TestGenerateParsesStructuredResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "How do I post an invoice?")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"title\": \"Posting an invoice\"}"}}]
		}`))
	}))
	defer backend.Close()

	tg := NewTitleGenerator(&profile.Profile{
		TitleLLMAPIKey:  "test-key",
		TitleLLMBaseURL: backend.URL,
		TitleLLMModel:   "gpt-4o-mini",
		TitleLLMTimeout: 5,
	})
	require.NotNil(t, tg)

	title, err := tg.Generate(context.Background(), "How do I post an invoice?", "Use the posting window.")
	require.NoError(t, err)
	assert.Equal(t, "Posting an invoice", title)
}

func TestGenerateRejectsEmptyTitle(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"title\": \"\"}"}}]
		}`))
	}))
	defer backend.Close()

	tg := NewTitleGenerator(&profile.Profile{
		TitleLLMAPIKey:  "test-key",
		TitleLLMBaseURL: backend.URL,
		TitleLLMModel:   "gpt-4o-mini",
		TitleLLMTimeout: 5,
	})
	require.NotNil(t, tg)

	_, err := tg.Generate(context.Background(), "q", "a")
	require.Error(t, err)
}
