package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"subtide/internal/config"
)

const (
	defaultMaxBatchItems = 25
	defaultMaxBatchChars = 6000
	defaultHTTPTimeout   = 60 * time.Second
)

// Limits bounds how much text a single request may carry.
type Limits struct {
	MaxBatchItems int
	MaxBatchChars int
}

// Params carries per-request overrides. Zero values defer to the adapter's
// configured model and temperature.
type Params struct {
	Model       string
	Temperature float64
}

// Provider translates one batch of subtitle texts per call.
type Provider interface {
	Name() string
	Limits() Limits
	MinInterval() time.Duration
	TranslateBatch(ctx context.Context, texts []string, targetLanguage string, params Params) ([]string, error)
}

// New constructs the adapter for the named provider. The apiKey may be empty
// only for the local backend.
func New(name string, cfg config.Provider, apiKey string, timeout time.Duration, opts ...Option) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		return newGemini(cfg, apiKey, timeout, opts...), nil
	case "openai":
		return newOpenAI(cfg, apiKey, timeout, opts...), nil
	case "anthropic":
		return newAnthropic(cfg, apiKey, timeout, opts...), nil
	case "deepseek":
		return newDeepSeek(cfg, apiKey, timeout, opts...), nil
	case "local":
		return newLocal(cfg, timeout, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func limitsFromConfig(cfg config.Provider) Limits {
	limits := Limits{
		MaxBatchItems: defaultMaxBatchItems,
		MaxBatchChars: defaultMaxBatchChars,
	}
	if cfg.MaxBatchItems > 0 {
		limits.MaxBatchItems = cfg.MaxBatchItems
	}
	if cfg.MaxBatchChars > 0 {
		limits.MaxBatchChars = cfg.MaxBatchChars
	}
	return limits
}

func minIntervalFromConfig(cfg config.Provider) time.Duration {
	if cfg.MinIntervalMS <= 0 {
		return 0
	}
	return time.Duration(cfg.MinIntervalMS) * time.Millisecond
}
