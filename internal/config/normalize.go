package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeTranslation()
	c.normalizeLogging()
	c.normalizeOutput()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CredentialsFile) == "" {
		c.Paths.CredentialsFile = defaultCredentialsFile
	}
	if c.Paths.CredentialsFile, err = expandPath(c.Paths.CredentialsFile); err != nil {
		return fmt.Errorf("paths.credentials_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	if strings.TrimSpace(c.Transcription.Command) == "" {
		c.Transcription.Command = defaultTranscribeCmd
	}
	if strings.TrimSpace(c.Transcription.Model) == "" {
		c.Transcription.Model = defaultTranscribeModel
	}
	if strings.TrimSpace(c.Transcription.Device) == "" {
		c.Transcription.Device = defaultDevice
	}
	if strings.TrimSpace(c.Transcription.ComputeType) == "" {
		c.Transcription.ComputeType = defaultComputeType
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscribeTO
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.Provider = strings.ToLower(strings.TrimSpace(c.Translation.Provider))
	c.Translation.FallbackProvider = strings.ToLower(strings.TrimSpace(c.Translation.FallbackProvider))
	c.Translation.TargetLanguage = strings.TrimSpace(c.Translation.TargetLanguage)
	if c.Translation.Provider == "" {
		c.Translation.Provider = defaultProvider
	}
	if c.Translation.TargetLanguage == "" {
		c.Translation.TargetLanguage = defaultTargetLanguage
	}
	if c.Translation.RetryLimit <= 0 {
		c.Translation.RetryLimit = defaultRetryLimit
	}
	if c.Translation.RetryBaseSeconds <= 0 {
		c.Translation.RetryBaseSeconds = defaultRetryBaseSeconds
	}
	if c.Translation.RetryMaxSeconds <= 0 {
		c.Translation.RetryMaxSeconds = defaultRetryMaxSeconds
	}
	if c.Translation.RequestTimeout <= 0 {
		c.Translation.RequestTimeout = defaultRequestTimeout
	}
	if c.Translation.MaxConcurrent <= 0 {
		c.Translation.MaxConcurrent = defaultMaxConcurrent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeOutput() {
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = defaultOutputFormat
	}
}
