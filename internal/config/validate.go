package config

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

var knownProviders = map[string]struct{}{
	"gemini":    {},
	"openai":    {},
	"anthropic": {},
	"deepseek":  {},
	"local":     {},
}

var knownOutputFormats = map[string]struct{}{
	"srt": {},
	"vtt": {},
	"txt": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if _, ok := knownProviders[c.Translation.Provider]; !ok {
		return fmt.Errorf("translation.provider: unknown provider %q", c.Translation.Provider)
	}
	if c.Translation.FallbackProvider != "" {
		if _, ok := knownProviders[c.Translation.FallbackProvider]; !ok {
			return fmt.Errorf("translation.fallback_provider: unknown provider %q", c.Translation.FallbackProvider)
		}
		if c.Translation.FallbackProvider == c.Translation.Provider {
			return errors.New("translation.fallback_provider must differ from translation.provider")
		}
	}
	if _, err := language.Parse(c.Translation.TargetLanguage); err != nil {
		return fmt.Errorf("translation.target_language: invalid language tag %q: %w", c.Translation.TargetLanguage, err)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.workers":                    c.Workflow.Workers,
		"workflow.queue_poll_interval":        c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":       c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":         c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":          c.Workflow.HeartbeatTimeout,
		"translation.retry_limit":             c.Translation.RetryLimit,
		"translation.retry_base_seconds":      c.Translation.RetryBaseSeconds,
		"translation.retry_max_seconds":       c.Translation.RetryMaxSeconds,
		"translation.request_timeout":         c.Translation.RequestTimeout,
		"translation.max_concurrent_requests": c.Translation.MaxConcurrent,
		"transcription.timeout_seconds":       c.Transcription.TimeoutSeconds,
		"notifications.request_timeout":       c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateOutput() error {
	if _, ok := knownOutputFormats[c.Output.Format]; !ok {
		return fmt.Errorf("output.format: unsupported format %q (want srt, vtt, or txt)", c.Output.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
