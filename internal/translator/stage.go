package translator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"subtide/internal/config"
	"subtide/internal/logging"
	"subtide/internal/queue"
	"subtide/internal/services"
	"subtide/internal/services/providers"
	"subtide/internal/stage"
	"subtide/internal/subtitles"
	"subtide/internal/vault"
)

const stageName = "translator"

// ProviderFactory builds a provider adapter. Injected in tests to avoid
// real HTTP backends.
type ProviderFactory func(name string, cfg config.Provider, apiKey string, timeout time.Duration) (providers.Provider, error)

func defaultFactory(name string, cfg config.Provider, apiKey string, timeout time.Duration) (providers.Provider, error) {
	return providers.New(name, cfg, apiKey, timeout)
}

// Stage drives translation and subtitle export for a claimed job.
type Stage struct {
	cfg     *config.Config
	store   *queue.Store
	vault   *vault.Vault
	factory ProviderFactory
	logger  *slog.Logger
}

// StageOption customizes the stage.
type StageOption func(*Stage)

// WithProviderFactory overrides how provider adapters are constructed.
func WithProviderFactory(factory ProviderFactory) StageOption {
	return func(s *Stage) {
		if factory != nil {
			s.factory = factory
		}
	}
}

// WithStageLogger attaches a structured logger.
func WithStageLogger(logger *slog.Logger) StageOption {
	return func(s *Stage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStage builds the translation stage handler.
func NewStage(cfg *config.Config, store *queue.Store, keyVault *vault.Vault, opts ...StageOption) *Stage {
	s := &Stage{
		cfg:     cfg,
		store:   store,
		vault:   keyVault,
		factory: defaultFactory,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare validates that the job carries a usable transcript and a target
// language before claiming it.
func (s *Stage) Prepare(_ context.Context, item *queue.Item) error {
	segments, err := stage.ParseSegments(item.SegmentsJSON)
	if err != nil {
		return err
	}
	if s.targetLanguage(item) == "" {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "target language required", nil)
	}

	done := subtitles.TranslatedCount(segments)
	percent := 0.0
	if len(segments) > 0 {
		percent = float64(done) / float64(len(segments)) * 100
	}
	item.SetProgress("Translating", fmt.Sprintf("%d/%d segments", done, len(segments)), percent)
	return nil
}

// Execute translates every untranslated segment and writes the subtitle file.
// Progress and partial translations are checkpointed after each batch so an
// interrupted job resumes where it stopped.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	segments, err := stage.ParseSegments(item.SegmentsJSON)
	if err != nil {
		return err
	}
	targetLanguage := s.targetLanguage(item)

	runner, err := s.buildTranslator(item, len(segments))
	if err != nil {
		return err
	}

	if err := runner.Translate(ctx, item.ID, segments, targetLanguage); err != nil {
		return err
	}

	payload, err := subtitles.EncodeSegments(segments)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "execute", "encode segments", err)
	}
	item.SegmentsJSON = payload

	outputFile, err := s.export(item, segments, targetLanguage)
	if err != nil {
		return err
	}
	item.OutputFile = outputFile
	item.SetProgress("Completed", fmt.Sprintf("Subtitles written to %s", outputFile), 100)
	return nil
}

// HealthCheck verifies the configured provider resolves and, for remote
// backends, that a stored credential decrypts.
func (s *Stage) HealthCheck(_ context.Context) stage.Health {
	name := strings.ToLower(strings.TrimSpace(s.cfg.Translation.Provider))
	if _, ok := s.cfg.ProviderConfig(name); !ok {
		return stage.Unhealthy(stageName, fmt.Sprintf("unknown provider %q", name))
	}
	if name == "local" {
		return stage.Healthy(stageName)
	}
	if err := s.vault.Check(name, s.passphrase()); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}

func (s *Stage) buildTranslator(item *queue.Item, totalSegments int) (*Translator, error) {
	primaryName := strings.ToLower(strings.TrimSpace(item.Provider))
	if primaryName == "" {
		primaryName = strings.ToLower(strings.TrimSpace(s.cfg.Translation.Provider))
	}
	primary, err := s.buildProvider(primaryName)
	if err != nil {
		return nil, err
	}

	settings, err := DecodeSettings(item.SettingsJSON)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "build translator", "invalid job settings", err)
	}

	opts := []Option{
		WithParams(settings.Params()),
		WithRetryPolicy(
			s.cfg.Translation.RetryLimit,
			time.Duration(s.cfg.Translation.RetryBaseSeconds)*time.Second,
			time.Duration(s.cfg.Translation.RetryMaxSeconds)*time.Second,
		),
		WithLogger(s.logger),
		WithCheckpoint(s.checkpoint(item)),
		WithStopCheck(func(ctx context.Context) (bool, error) {
			return s.store.StopRequested(ctx, item.ID)
		}),
		WithObserver(func(p Progress) {
			percent := 0.0
			if totalSegments > 0 {
				percent = float64(p.SegmentsCompleted) / float64(totalSegments) * 100
			}
			item.SetProgress("Translating", fmt.Sprintf("%d/%d segments", p.SegmentsCompleted, p.SegmentsTotal), percent)
		}),
	}

	fallbackName := strings.ToLower(strings.TrimSpace(s.cfg.Translation.FallbackProvider))
	if fallbackName != "" && fallbackName != primaryName {
		fallback, err := s.buildProvider(fallbackName)
		if err != nil {
			s.logger.Warn("fallback provider unavailable",
				logging.String(logging.FieldProvider, fallbackName),
				logging.Error(err),
			)
		} else {
			opts = append(opts, WithFallback(fallback))
		}
	}

	return New(primary, opts...), nil
}

// buildProvider resolves the API key and constructs the adapter. The
// decrypted key is handed straight to the adapter and never retained or
// logged here.
func (s *Stage) buildProvider(name string) (providers.Provider, error) {
	providerCfg, ok := s.cfg.ProviderConfig(name)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "build provider",
			fmt.Sprintf("unknown provider %q", name), nil)
	}

	var apiKey string
	if name != "local" {
		key, err := s.vault.Retrieve(name, s.passphrase())
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "build provider",
				fmt.Sprintf("credential for provider %q unavailable", name), err)
		}
		apiKey = key
	}

	timeout := time.Duration(s.cfg.Translation.RequestTimeout) * time.Second
	return s.factory(name, providerCfg, apiKey, timeout)
}

// checkpoint persists segments and derived progress in one write per batch.
func (s *Stage) checkpoint(item *queue.Item) func(ctx context.Context, segments []subtitles.Segment) error {
	return func(ctx context.Context, segments []subtitles.Segment) error {
		payload, err := subtitles.EncodeSegments(segments)
		if err != nil {
			return fmt.Errorf("encode segments: %w", err)
		}
		item.SegmentsJSON = payload

		done := subtitles.TranslatedCount(segments)
		percent := 0.0
		if len(segments) > 0 {
			percent = float64(done) / float64(len(segments)) * 100
		}
		item.SetProgress("Translating", fmt.Sprintf("%d/%d segments", done, len(segments)), percent)
		return s.store.Update(ctx, item)
	}
}

func (s *Stage) export(item *queue.Item, segments []subtitles.Segment, targetLanguage string) (string, error) {
	format, err := subtitles.ParseFormat(s.cfg.Output.Format)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "export", "invalid output format", err)
	}
	path := subtitles.OutputPath(s.cfg.Paths.OutputDir, item.SourcePath, targetLanguage, format)
	opts := subtitles.RenderOptions{TxtTimestamps: s.cfg.Output.TxtTimestamps}
	if err := subtitles.WriteFile(path, segments, format, opts); err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "export", "write subtitle file", err)
	}
	return path, nil
}

func (s *Stage) targetLanguage(item *queue.Item) string {
	if lang := strings.TrimSpace(item.TargetLanguage); lang != "" {
		return lang
	}
	return strings.TrimSpace(s.cfg.Translation.TargetLanguage)
}

func (s *Stage) passphrase() string {
	envVar := strings.TrimSpace(s.cfg.Translation.PassphraseEnvVar)
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
