package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subtide/internal/config"
)

type base struct {
	name        string
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	limits      Limits
	minInterval time.Duration
}

// Option customizes an adapter.
type Option func(*base)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *base) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// WithBaseURL overrides the API endpoint, primarily for tests.
func WithBaseURL(baseURL string) Option {
	return func(b *base) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			b.baseURL = trimmed
		}
	}
}

func newBase(name string, cfg config.Provider, apiKey, defaultBaseURL, defaultModel string, timeout time.Duration, opts ...Option) base {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	b := base{
		name:        name,
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
		limits:      limitsFromConfig(cfg),
		minInterval: minIntervalFromConfig(cfg),
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		b.baseURL = trimmed
	}
	if trimmed := strings.TrimSpace(cfg.Model); trimmed != "" {
		b.model = trimmed
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Name() string               { return b.name }
func (b *base) Limits() Limits             { return b.limits }
func (b *base) MinInterval() time.Duration { return b.minInterval }

func (b *base) resolve(params Params) (string, float64) {
	model := b.model
	if trimmed := strings.TrimSpace(params.Model); trimmed != "" {
		model = trimmed
	}
	temperature := b.temperature
	if params.Temperature > 0 {
		temperature = params.Temperature
	}
	return model, temperature
}

func (b *base) postJSON(ctx context.Context, endpoint string, headers map[string]string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", b.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: http error: %w", b.name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", b.name, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusToError(b.name, resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
	}
	return body, nil
}

// chatClient speaks the OpenAI chat completions wire format, shared by the
// openai, deepseek, and local adapters.
type chatClient struct {
	base
	authHeader bool
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *chatClient) TranslateBatch(ctx context.Context, texts []string, targetLanguage string, params Params) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model, temperature := c.resolve(params)
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt(targetLanguage)},
			{Role: "user", Content: BuildUserPrompt(texts)},
		},
		Temperature: temperature,
	}
	headers := map[string]string{}
	if c.authHeader {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	body, err := c.postJSON(ctx, strings.TrimRight(c.baseURL, "/")+"/chat/completions", headers, payload)
	if err != nil {
		return nil, err
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ResponseError{Provider: c.name, Reason: "decode response", Snippet: snippet(string(body))}
	}
	if parsed.Error != nil {
		return nil, &ResponseError{Provider: c.name, Reason: "api error: " + strings.TrimSpace(parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ResponseError{Provider: c.name, Reason: "empty choices", Snippet: snippet(string(body))}
	}
	return ParseNumberedList(c.name, parsed.Choices[0].Message.Content, len(texts))
}

func newOpenAI(cfg config.Provider, apiKey string, timeout time.Duration, opts ...Option) *chatClient {
	return &chatClient{
		base:       newBase("openai", cfg, apiKey, "https://api.openai.com/v1", "gpt-4o-mini", timeout, opts...),
		authHeader: true,
	}
}

func newDeepSeek(cfg config.Provider, apiKey string, timeout time.Duration, opts ...Option) *chatClient {
	return &chatClient{
		base:       newBase("deepseek", cfg, apiKey, "https://api.deepseek.com/v1", "deepseek-chat", timeout, opts...),
		authHeader: true,
	}
}

// newLocal targets an OpenAI-compatible server on localhost; no auth header.
func newLocal(cfg config.Provider, timeout time.Duration, opts ...Option) *chatClient {
	return &chatClient{
		base: newBase("local", cfg, "", "http://127.0.0.1:11434/v1", "local-model", timeout, opts...),
	}
}
