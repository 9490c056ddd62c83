package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir         string `toml:"work_dir"`
	OutputDir       string `toml:"output_dir"`
	LogDir          string `toml:"log_dir"`
	CredentialsFile string `toml:"credentials_file"`
}

// Transcription configures the external speech-to-text collaborator. Model,
// device, and compute type are opaque strings passed through unmodified.
type Transcription struct {
	Command        string `toml:"command"`
	Model          string `toml:"model"`
	Device         string `toml:"device"`
	ComputeType    string `toml:"compute_type"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation configures batching, retries, and provider selection.
type Translation struct {
	Provider         string `toml:"provider"`
	FallbackProvider string `toml:"fallback_provider"`
	TargetLanguage   string `toml:"target_language"`
	RetryLimit       int    `toml:"retry_limit"`
	RetryBaseSeconds int    `toml:"retry_base_seconds"`
	RetryMaxSeconds  int    `toml:"retry_max_seconds"`
	RequestTimeout   int    `toml:"request_timeout"`
	MaxConcurrent    int    `toml:"max_concurrent_requests"`
	PassphraseEnvVar string `toml:"passphrase_env"`
}

// Provider holds per-provider connection settings. Zero values defer to the
// adapter's built-in defaults.
type Provider struct {
	Model         string  `toml:"model"`
	BaseURL       string  `toml:"base_url"`
	Temperature   float64 `toml:"temperature"`
	MaxBatchItems int     `toml:"max_batch_items"`
	MaxBatchChars int     `toml:"max_batch_chars"`
	MinIntervalMS int     `toml:"min_interval_ms"`
}

// Providers groups the supported translation backends.
type Providers struct {
	Gemini    Provider `toml:"gemini"`
	OpenAI    Provider `toml:"openai"`
	Anthropic Provider `toml:"anthropic"`
	DeepSeek  Provider `toml:"deepseek"`
	Local     Provider `toml:"local"`
}

// Workflow contains worker pool sizing and timing intervals.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Transcription  bool   `toml:"transcription"`
	Translation    bool   `toml:"translation"`
	Queue          bool   `toml:"queue"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Output controls subtitle export.
type Output struct {
	Format        string `toml:"format"`
	TxtTimestamps bool   `toml:"txt_timestamps"`
}

// Config encapsulates all configuration values for subtide.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	Providers     Providers     `toml:"providers"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Output        Output        `toml:"output"`
}

// ProviderConfig returns the settings block for a named translation provider.
func (c *Config) ProviderConfig(name string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		return c.Providers.Gemini, true
	case "openai":
		return c.Providers.OpenAI, true
	case "anthropic":
		return c.Providers.Anthropic, true
	case "deepseek":
		return c.Providers.DeepSeek, true
	case "local":
		return c.Providers.Local, true
	default:
		return Provider{}, false
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subtide/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all paths expanded and defaults applied. The second return value is the
// resolved path; the third reports whether a file actually existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the work, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(expanded); err == nil {
		return "", fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
