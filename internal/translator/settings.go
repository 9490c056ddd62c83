package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"subtide/internal/services/providers"
)

// Settings are per-job provider overrides stored as JSON with the queue item.
// Zero values defer to the provider's configured defaults.
type Settings struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Params converts the overrides into the adapter's request parameters.
func (s Settings) Params() providers.Params {
	return providers.Params{Model: s.Model, Temperature: s.Temperature}
}

// EncodeSettings serializes overrides for storage with a queue item. Returns
// an empty string when nothing is overridden.
func EncodeSettings(s Settings) (string, error) {
	if s == (Settings{}) {
		return "", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode job settings: %w", err)
	}
	return string(data), nil
}

// DecodeSettings parses a stored settings payload. An empty payload yields
// zero-value settings.
func DecodeSettings(payload string) (Settings, error) {
	var s Settings
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
		return Settings{}, fmt.Errorf("decode job settings: %w", err)
	}
	return s, nil
}
