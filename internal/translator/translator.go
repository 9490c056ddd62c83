package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"subtide/internal/logging"
	"subtide/internal/services/providers"
	"subtide/internal/subtitles"
)

const (
	defaultRetryLimit = 3
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// ErrStopped indicates a stop request was honored at a batch boundary.
var ErrStopped = errors.New("translation stopped by request")

// Progress reports completion after each batch.
type Progress struct {
	JobID             int64
	SegmentsCompleted int
	SegmentsTotal     int
}

// Translator drives batch translation for a single job at a time.
type Translator struct {
	primary    providers.Provider
	fallback   providers.Provider
	retryLimit int
	baseDelay  time.Duration
	maxDelay   time.Duration
	params     providers.Params
	logger     *slog.Logger
	sleeper    func(time.Duration)
	observer   func(Progress)
	checkpoint func(ctx context.Context, segments []subtitles.Segment) error
	stopCheck  func(ctx context.Context) (bool, error)
}

// Option customizes the translator.
type Option func(*Translator)

// WithFallback sets a provider tried once per batch after the primary's
// retries are exhausted.
func WithFallback(provider providers.Provider) Option {
	return func(t *Translator) {
		t.fallback = provider
	}
}

// WithRetryPolicy overrides attempt count and backoff delays.
func WithRetryPolicy(limit int, baseDelay, maxDelay time.Duration) Option {
	return func(t *Translator) {
		if limit > 0 {
			t.retryLimit = limit
		}
		if baseDelay > 0 {
			t.baseDelay = baseDelay
		}
		if maxDelay > 0 {
			t.maxDelay = maxDelay
		}
	}
}

// WithParams sets per-request overrides (model, temperature) forwarded to the
// provider on every batch. The model override binds to the primary only;
// model names do not transfer across providers, so the fallback keeps its
// configured model.
func WithParams(params providers.Params) Option {
	return func(t *Translator) {
		t.params = params
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(t *Translator) {
		t.sleeper = sleeper
	}
}

// WithObserver registers a progress callback invoked after every batch.
func WithObserver(observer func(Progress)) Option {
	return func(t *Translator) {
		t.observer = observer
	}
}

// WithCheckpoint registers a callback that persists segments after every
// successful batch so interrupted jobs resume without re-translating.
func WithCheckpoint(checkpoint func(ctx context.Context, segments []subtitles.Segment) error) Option {
	return func(t *Translator) {
		t.checkpoint = checkpoint
	}
}

// WithStopCheck registers a callback consulted at each batch boundary.
func WithStopCheck(check func(ctx context.Context) (bool, error)) Option {
	return func(t *Translator) {
		t.stopCheck = check
	}
}

// New constructs a translator around the primary provider.
func New(primary providers.Provider, opts ...Option) *Translator {
	t := &Translator{
		primary:    primary,
		retryLimit: defaultRetryLimit,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate fills in Translated for every untranslated segment, mutating the
// slice in place. Batches run sequentially; already-translated segments are
// skipped so a resumed job picks up where it left off. On failure the
// completed batches keep their translations and the error is returned.
func (t *Translator) Translate(ctx context.Context, jobID int64, segments []subtitles.Segment, targetLanguage string) error {
	if t.primary == nil {
		return errors.New("translate: no provider configured")
	}
	total := len(segments)
	completed := subtitles.TranslatedCount(segments)

	batches := Partition(segments, t.primary.Limits())
	if len(batches) == 0 {
		t.notify(Progress{JobID: jobID, SegmentsCompleted: completed, SegmentsTotal: total})
		return nil
	}

	var lastRequest time.Time
	for i, batch := range batches {
		if stopped, err := t.stopRequested(ctx); err != nil {
			return err
		} else if stopped {
			return ErrStopped
		}

		if err := t.pace(ctx, &lastRequest); err != nil {
			return err
		}

		translations, err := t.translateBatch(ctx, batch.Texts, targetLanguage)
		if err != nil {
			return fmt.Errorf("translate batch %d/%d: %w", i+1, len(batches), err)
		}
		for j, index := range batch.Indices {
			value := translations[j]
			segments[index].Translated = &value
		}
		completed += len(batch.Indices)

		if t.checkpoint != nil {
			if err := t.checkpoint(ctx, segments); err != nil {
				return fmt.Errorf("checkpoint after batch %d/%d: %w", i+1, len(batches), err)
			}
		}
		t.notify(Progress{JobID: jobID, SegmentsCompleted: completed, SegmentsTotal: total})
		t.logger.Info("batch translated",
			logging.Int64(logging.FieldJobID, jobID),
			logging.Int("batch", i+1),
			logging.Int("batches", len(batches)),
			logging.Int("segments_completed", completed),
			logging.Int("segments_total", total),
		)
	}
	return nil
}

func (t *Translator) translateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= t.retryLimit; attempt++ {
		translations, err := t.primary.TranslateBatch(ctx, texts, targetLanguage, t.params)
		if err == nil {
			return translations, nil
		}
		lastErr = err

		if !providers.Retryable(err) || attempt == t.retryLimit {
			break
		}
		delay := t.backoffDelay(attempt)
		if hint, ok := providers.RetryAfterHint(err); ok {
			delay = t.capDelay(hint)
		}
		t.logger.Warn("translation attempt failed",
			logging.String(logging.FieldProvider, t.primary.Name()),
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", delay),
			logging.Error(err),
		)
		if err := t.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	if t.fallback != nil {
		t.logger.Warn("switching to fallback provider",
			logging.String(logging.FieldProvider, t.fallback.Name()),
			logging.Error(lastErr),
		)
		fallbackParams := t.params
		fallbackParams.Model = ""
		translations, err := t.fallback.TranslateBatch(ctx, texts, targetLanguage, fallbackParams)
		if err == nil {
			return translations, nil
		}
		return nil, fmt.Errorf("fallback %s: %w (primary: %w)", t.fallback.Name(), err, lastErr)
	}
	return nil, lastErr
}

func (t *Translator) stopRequested(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if t.stopCheck == nil {
		return false, nil
	}
	return t.stopCheck(ctx)
}

func (t *Translator) pace(ctx context.Context, lastRequest *time.Time) error {
	interval := t.primary.MinInterval()
	if interval <= 0 || lastRequest.IsZero() {
		*lastRequest = time.Now()
		return nil
	}
	if wait := interval - time.Since(*lastRequest); wait > 0 {
		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
	}
	*lastRequest = time.Now()
	return nil
}

func (t *Translator) notify(progress Progress) {
	if t.observer != nil {
		t.observer(progress)
	}
}

func (t *Translator) backoffDelay(attempt int) time.Duration {
	delay := t.baseDelay
	for i := 1; i < attempt; i++ {
		if delay > t.maxDelay/2 {
			return t.maxDelay
		}
		delay *= 2
	}
	return t.capDelay(delay)
}

func (t *Translator) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if t.maxDelay > 0 && delay > t.maxDelay {
		return t.maxDelay
	}
	return delay
}

func (t *Translator) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if t.sleeper != nil {
		t.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
