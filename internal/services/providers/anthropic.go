package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"subtide/internal/config"
)

const (
	anthropicVersion        = "2023-06-01"
	anthropicMinReplyTokens = 4096
)

type anthropicClient struct {
	base
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *anthropicClient) TranslateBatch(ctx context.Context, texts []string, targetLanguage string, params Params) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model, temperature := c.resolve(params)
	payload := anthropicRequest{
		Model:     model,
		MaxTokens: replyTokenBudget(texts),
		System:    BuildSystemPrompt(targetLanguage),
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildUserPrompt(texts)},
		},
		Temperature: temperature,
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}
	body, err := c.postJSON(ctx, strings.TrimRight(c.baseURL, "/")+"/messages", headers, payload)
	if err != nil {
		return nil, err
	}
	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ResponseError{Provider: c.name, Reason: "decode response", Snippet: snippet(string(body))}
	}
	if parsed.Error != nil {
		return nil, &ResponseError{Provider: c.name, Reason: "api error: " + strings.TrimSpace(parsed.Error.Message)}
	}
	var content strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, &ResponseError{Provider: c.name, Reason: "empty content", Snippet: snippet(string(body))}
	}
	return ParseNumberedList(c.name, content.String(), len(texts))
}

// replyTokenBudget sizes max_tokens from the batch so a long batch's reply is
// not truncated into a count mismatch. A token covers roughly four
// characters and translations can run longer than their source, so chars/2
// leaves about double the source length in output space.
func replyTokenBudget(texts []string) int {
	chars := 0
	for _, text := range texts {
		chars += len(text)
	}
	budget := chars / 2
	if budget < anthropicMinReplyTokens {
		return anthropicMinReplyTokens
	}
	return budget
}

func newAnthropic(cfg config.Provider, apiKey string, timeout time.Duration, opts ...Option) *anthropicClient {
	return &anthropicClient{
		base: newBase("anthropic", cfg, apiKey, "https://api.anthropic.com/v1", "claude-3-5-haiku-latest", timeout, opts...),
	}
}
