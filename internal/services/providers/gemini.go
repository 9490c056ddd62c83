package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"subtide/internal/config"
)

type geminiClient struct {
	base
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *geminiClient) TranslateBatch(ctx context.Context, texts []string, targetLanguage string, params Params) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model, temperature := c.resolve(params)
	payload := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: BuildSystemPrompt(targetLanguage)}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: BuildUserPrompt(texts)}}},
		},
		GenerationConfig: geminiGenerationConfig{Temperature: temperature},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.baseURL, "/"), model)
	headers := map[string]string{"x-goog-api-key": c.apiKey}
	body, err := c.postJSON(ctx, endpoint, headers, payload)
	if err != nil {
		return nil, err
	}
	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ResponseError{Provider: c.name, Reason: "decode response", Snippet: snippet(string(body))}
	}
	if parsed.Error != nil {
		return nil, &ResponseError{Provider: c.name, Reason: "api error: " + strings.TrimSpace(parsed.Error.Message)}
	}
	if len(parsed.Candidates) == 0 {
		return nil, &ResponseError{Provider: c.name, Reason: "empty candidates", Snippet: snippet(string(body))}
	}
	var content strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}
	return ParseNumberedList(c.name, content.String(), len(texts))
}

func newGemini(cfg config.Provider, apiKey string, timeout time.Duration, opts ...Option) *geminiClient {
	return &geminiClient{
		base: newBase("gemini", cfg, apiKey, "https://generativelanguage.googleapis.com/v1beta", "gemini-2.0-flash", timeout, opts...),
	}
}
