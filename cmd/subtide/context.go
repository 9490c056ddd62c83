package main

import (
	"os"
	"strings"
	"sync"

	"subtide/internal/config"
	"subtide/internal/queue"
	"subtide/internal/vault"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// withStore opens the queue store for the duration of a single command.
func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *commandContext) openVault() (*config.Config, *vault.Vault, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, vault.New(cfg.Paths.CredentialsFile), nil
}

// vaultPassphrase reads the optional passphrase from the configured
// environment variable. The value is never logged or persisted.
func vaultPassphrase(cfg *config.Config) string {
	envVar := strings.TrimSpace(cfg.Translation.PassphraseEnvVar)
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
