// Package ai hosts the optional LLM helpers of the gateway. The only
// one today is the conversation title generator.
package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/etcop/copilot-gateway/internal/profile"
)

// LLM parameters for title generation
const (
	titleMaxTokens    = 20
	titleTemperature  = 0.1
	titleTopP         = 0.5
	titleMaxLen       = 500
	titleMaxRuneCount = 50
)

// TitleGenerator produces short human-readable titles for stored
// conversations from their first exchange.
type TitleGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewTitleGenerator builds a generator from the profile. Returns nil
// when no API key is configured; callers treat a nil generator as the
// feature being off.
func NewTitleGenerator(p *profile.Profile) *TitleGenerator {
	if !p.IsTitleLLMEnabled() {
		return nil
	}

	config := openai.DefaultConfig(p.TitleLLMAPIKey)
	if p.TitleLLMBaseURL != "" {
		config.BaseURL = p.TitleLLMBaseURL
	}

	return &TitleGenerator{
		client:  openai.NewClientWithConfig(config),
		model:   p.TitleLLMModel,
		timeout: time.Duration(p.TitleLLMTimeout) * time.Second,
	}
}

// Generate generates a title from the opening question and answer of a
// conversation.
func (tg *TitleGenerator) Generate(ctx context.Context, question, answer string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, tg.timeout)
	defer cancel()

	if len(question) > titleMaxLen {
		question = question[:titleMaxLen] + "..."
	}
	if len(answer) > titleMaxLen {
		answer = answer[:titleMaxLen] + "..."
	}

	req := openai.ChatCompletionRequest{
		Model:       tg.model,
		MaxTokens:   titleMaxTokens,
		Temperature: titleTemperature,
		TopP:        titleTopP,
		Stop:        []string{"\n"},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: titleSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: renderTitlePrompt(question, answer),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "conversation_title",
				Strict: true,
				Schema: titleJSONSchema,
			},
		},
	}

	start := time.Now()
	resp, err := tg.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start)

	if err != nil {
		slog.Error("title generation failed",
			"model", tg.model,
			"error", err,
			"latency_ms", latency.Milliseconds())
		return "", errors.Wrap(err, "llm request failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from llm")
	}

	var result struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		slog.Warn("title generation returned unparseable content",
			"model", tg.model,
			"content", resp.Choices[0].Message.Content,
			"error", err)
		return "", errors.Wrap(err, "parse response failed")
	}
	if result.Title == "" {
		return "", errors.New("empty title in response")
	}

	// Rune-aware truncation keeps multi-byte titles intact.
	runes := []rune(result.Title)
	if len(runes) > titleMaxRuneCount {
		result.Title = string(runes[:titleMaxRuneCount])
	}

	slog.Debug("title generated",
		"model", tg.model,
		"title", result.Title,
		"latency_ms", latency.Milliseconds(),
		"tokens_total", resp.Usage.TotalTokens)
	return result.Title, nil
}
