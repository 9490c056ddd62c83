package translator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"subtide/internal/services/providers"
	"subtide/internal/subtitles"
	"subtide/internal/translator"
)

type fakeProvider struct {
	name     string
	limits   providers.Limits
	interval time.Duration
	calls    [][]string
	params   []providers.Params
	respond  func(call int, texts []string) ([]string, error)
}

func (f *fakeProvider) Name() string               { return f.name }
func (f *fakeProvider) Limits() providers.Limits   { return f.limits }
func (f *fakeProvider) MinInterval() time.Duration { return f.interval }

func (f *fakeProvider) TranslateBatch(ctx context.Context, texts []string, targetLanguage string, params providers.Params) ([]string, error) {
	call := len(f.calls)
	f.calls = append(f.calls, texts)
	f.params = append(f.params, params)
	if f.respond != nil {
		return f.respond(call, texts)
	}
	return echoTranslations(texts), nil
}

func echoTranslations(texts []string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = "x-" + text
	}
	return out
}

func makeSegments(texts ...string) []subtitles.Segment {
	segments := make([]subtitles.Segment, len(texts))
	for i, text := range texts {
		segments[i] = subtitles.Segment{
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i)*time.Second + 900*time.Millisecond,
			Text:  text,
		}
	}
	return segments
}

func TestPartitionRespectsItemLimit(t *testing.T) {
	segments := makeSegments("one", "two", "three")
	batches := translator.Partition(segments, providers.Limits{MaxBatchItems: 2, MaxBatchChars: 1000})
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0].Indices) != 2 || len(batches[1].Indices) != 1 {
		t.Fatalf("batch sizes = %d, %d", len(batches[0].Indices), len(batches[1].Indices))
	}
}

func TestPartitionRespectsCharLimit(t *testing.T) {
	segments := makeSegments("aaaa", "bbbb", "cc")
	batches := translator.Partition(segments, providers.Limits{MaxBatchItems: 10, MaxBatchChars: 8})
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0].Chars != 8 || batches[1].Chars != 2 {
		t.Fatalf("batch chars = %d, %d", batches[0].Chars, batches[1].Chars)
	}
}

func TestPartitionOversizedSegmentFormsOwnBatch(t *testing.T) {
	segments := makeSegments("short", "this segment is far longer than the character budget", "tail")
	batches := translator.Partition(segments, providers.Limits{MaxBatchItems: 10, MaxBatchChars: 10})
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[1].Indices) != 1 || batches[1].Indices[0] != 1 {
		t.Fatalf("oversized segment not isolated: %+v", batches[1])
	}
}

func TestPartitionSkipsTranslatedSegments(t *testing.T) {
	segments := makeSegments("one", "two", "three")
	done := "done"
	segments[1].Translated = &done
	batches := translator.Partition(segments, providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000})
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if len(batches[0].Indices) != 2 || batches[0].Indices[0] != 0 || batches[0].Indices[1] != 2 {
		t.Fatalf("unexpected indices %v", batches[0].Indices)
	}
}

func TestTranslateFillsAllSegments(t *testing.T) {
	provider := &fakeProvider{name: "fake", limits: providers.Limits{MaxBatchItems: 2, MaxBatchChars: 1000}}
	segments := makeSegments("one", "two", "three")

	var progress []translator.Progress
	var checkpoints int
	tr := translator.New(provider,
		translator.WithObserver(func(p translator.Progress) { progress = append(progress, p) }),
		translator.WithCheckpoint(func(ctx context.Context, segs []subtitles.Segment) error {
			checkpoints++
			return nil
		}),
	)

	if err := tr.Translate(context.Background(), 7, segments, "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	for i, segment := range segments {
		if segment.Translated == nil || *segment.Translated != "x-"+segment.Text {
			t.Fatalf("segment %d not translated: %#v", i, segment)
		}
	}
	if len(provider.calls) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(provider.calls))
	}
	if checkpoints != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", checkpoints)
	}
	if len(progress) != 2 {
		t.Fatalf("expected 2 progress reports, got %d", len(progress))
	}
	last := progress[len(progress)-1]
	if last.JobID != 7 || last.SegmentsCompleted != 3 || last.SegmentsTotal != 3 {
		t.Fatalf("unexpected final progress: %+v", last)
	}
}

func TestTranslateRetriesTransientErrors(t *testing.T) {
	provider := &fakeProvider{
		name:   "flaky",
		limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000},
		respond: func(call int, texts []string) ([]string, error) {
			if call < 2 {
				return nil, &providers.StatusError{Provider: "flaky", StatusCode: 500}
			}
			return echoTranslations(texts), nil
		},
	}
	var delays []time.Duration
	tr := translator.New(provider,
		translator.WithSleeper(func(d time.Duration) { delays = append(delays, d) }),
	)

	segments := makeSegments("one")
	if err := tr.Translate(context.Background(), 1, segments, "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(provider.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(provider.calls))
	}
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Fatalf("unexpected backoff delays %v", delays)
	}
}

func TestTranslateHonorsRetryAfter(t *testing.T) {
	provider := &fakeProvider{
		name:   "limited",
		limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000},
		respond: func(call int, texts []string) ([]string, error) {
			if call == 0 {
				return nil, &providers.RateLimitError{Provider: "limited", RetryAfter: 7 * time.Second}
			}
			return echoTranslations(texts), nil
		},
	}
	var delays []time.Duration
	tr := translator.New(provider,
		translator.WithSleeper(func(d time.Duration) { delays = append(delays, d) }),
	)

	if err := tr.Translate(context.Background(), 1, makeSegments("one"), "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(delays) != 1 || delays[0] != 7*time.Second {
		t.Fatalf("expected Retry-After delay, got %v", delays)
	}
}

func TestTranslateFailureKeepsPartialProgress(t *testing.T) {
	provider := &fakeProvider{
		name:   "half",
		limits: providers.Limits{MaxBatchItems: 2, MaxBatchChars: 1000},
		respond: func(call int, texts []string) ([]string, error) {
			if call == 0 {
				return echoTranslations(texts), nil
			}
			return nil, &providers.StatusError{Provider: "half", StatusCode: 503}
		},
	}
	tr := translator.New(provider, translator.WithSleeper(func(time.Duration) {}))

	segments := makeSegments("one", "two", "three")
	err := tr.Translate(context.Background(), 1, segments, "es")
	if err == nil {
		t.Fatal("expected error")
	}
	// Batch one succeeded, batch two got three attempts.
	if len(provider.calls) != 4 {
		t.Fatalf("expected 4 provider calls, got %d", len(provider.calls))
	}
	if segments[0].Translated == nil || segments[1].Translated == nil {
		t.Fatal("first batch translations lost")
	}
	if segments[2].Translated != nil {
		t.Fatal("failed segment must stay untranslated")
	}
}

func TestTranslateRetriesBadResponses(t *testing.T) {
	provider := &fakeProvider{
		name:   "glitchy",
		limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000},
		respond: func(call int, texts []string) ([]string, error) {
			if call < 2 {
				return nil, &providers.ResponseError{Provider: "glitchy", Reason: "expected 2 translations, got 1"}
			}
			return echoTranslations(texts), nil
		},
	}
	tr := translator.New(provider, translator.WithSleeper(func(time.Duration) {}))

	segments := makeSegments("one", "two")
	if err := tr.Translate(context.Background(), 1, segments, "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(provider.calls) != 3 {
		t.Fatalf("expected retries up to the third attempt, got %d calls", len(provider.calls))
	}
	if segments[0].Translated == nil || segments[1].Translated == nil {
		t.Fatal("segments not translated after recovery")
	}
}

func TestTranslateBadResponsesExhaustCeiling(t *testing.T) {
	provider := &fakeProvider{
		name:   "garbled",
		limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000},
		respond: func(call int, texts []string) ([]string, error) {
			return nil, &providers.ResponseError{Provider: "garbled", Reason: "unparseable numbering"}
		},
	}
	tr := translator.New(provider, translator.WithSleeper(func(time.Duration) {}))

	err := tr.Translate(context.Background(), 1, makeSegments("one"), "es")
	var respErr *providers.ResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("error = %v, want ResponseError", err)
	}
	if len(provider.calls) != 3 {
		t.Fatalf("expected the full retry ceiling, got %d calls", len(provider.calls))
	}
}

func TestTranslateNonRetryableFailsFast(t *testing.T) {
	provider := &fakeProvider{
		name:   "locked",
		limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000},
		respond: func(call int, texts []string) ([]string, error) {
			return nil, &providers.StatusError{Provider: "locked", StatusCode: 401}
		},
	}
	tr := translator.New(provider, translator.WithSleeper(func(time.Duration) {}))

	err := tr.Translate(context.Background(), 1, makeSegments("one", "two"), "es")
	var statusErr *providers.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if len(provider.calls) != 1 {
		t.Fatalf("expected single attempt for an auth failure, got %d", len(provider.calls))
	}
}

func TestTranslateForwardsParams(t *testing.T) {
	provider := &fakeProvider{name: "fake", limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000}}
	tr := translator.New(provider,
		translator.WithParams(providers.Params{Model: "fast-model", Temperature: 0.2}),
	)

	if err := tr.Translate(context.Background(), 1, makeSegments("one"), "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(provider.params) != 1 {
		t.Fatalf("expected 1 call, got %d", len(provider.params))
	}
	if provider.params[0].Model != "fast-model" || provider.params[0].Temperature != 0.2 {
		t.Fatalf("params not forwarded: %+v", provider.params[0])
	}
}

func TestTranslateFallbackDropsModelOverride(t *testing.T) {
	primary := &fakeProvider{
		name:   "primary",
		limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000},
		respond: func(call int, texts []string) ([]string, error) {
			return nil, &providers.StatusError{Provider: "primary", StatusCode: 401}
		},
	}
	fallback := &fakeProvider{name: "backup", limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000}}
	tr := translator.New(primary,
		translator.WithFallback(fallback),
		translator.WithParams(providers.Params{Model: "primary-only-model", Temperature: 0.3}),
		translator.WithSleeper(func(time.Duration) {}),
	)

	if err := tr.Translate(context.Background(), 1, makeSegments("one"), "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if primary.params[0].Model != "primary-only-model" {
		t.Fatalf("primary params = %+v", primary.params[0])
	}
	if fallback.params[0].Model != "" || fallback.params[0].Temperature != 0.3 {
		t.Fatalf("fallback params = %+v, want model cleared and temperature kept", fallback.params[0])
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	encoded, err := translator.EncodeSettings(translator.Settings{Model: "m", Temperature: 0.5})
	if err != nil {
		t.Fatalf("EncodeSettings: %v", err)
	}
	decoded, err := translator.DecodeSettings(encoded)
	if err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if decoded.Model != "m" || decoded.Temperature != 0.5 {
		t.Fatalf("decoded = %+v", decoded)
	}

	if empty, err := translator.EncodeSettings(translator.Settings{}); err != nil || empty != "" {
		t.Fatalf("empty settings should encode to %q, got %q (%v)", "", empty, err)
	}
	if _, err := translator.DecodeSettings("{not json"); err == nil {
		t.Fatal("expected error for malformed settings payload")
	}
}

func TestTranslateFallbackProvider(t *testing.T) {
	primary := &fakeProvider{
		name:   "primary",
		limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000},
		respond: func(call int, texts []string) ([]string, error) {
			return nil, &providers.StatusError{Provider: "primary", StatusCode: 500}
		},
	}
	fallback := &fakeProvider{name: "backup", limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000}}
	tr := translator.New(primary,
		translator.WithFallback(fallback),
		translator.WithSleeper(func(time.Duration) {}),
	)

	segments := makeSegments("one")
	if err := tr.Translate(context.Background(), 1, segments, "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(primary.calls) != 3 {
		t.Fatalf("expected primary retries exhausted, got %d calls", len(primary.calls))
	}
	if len(fallback.calls) != 1 {
		t.Fatalf("expected single fallback call, got %d", len(fallback.calls))
	}
	if segments[0].Translated == nil {
		t.Fatal("fallback translation not applied")
	}
}

func TestTranslateStopsAtBatchBoundary(t *testing.T) {
	provider := &fakeProvider{name: "fake", limits: providers.Limits{MaxBatchItems: 1, MaxBatchChars: 1000}}
	segments := makeSegments("one", "two", "three")

	batchesDone := 0
	tr := translator.New(provider,
		translator.WithObserver(func(translator.Progress) { batchesDone++ }),
		translator.WithStopCheck(func(ctx context.Context) (bool, error) {
			return batchesDone >= 1, nil
		}),
	)

	err := tr.Translate(context.Background(), 1, segments, "es")
	if !errors.Is(err, translator.ErrStopped) {
		t.Fatalf("error = %v, want ErrStopped", err)
	}
	if len(provider.calls) != 1 {
		t.Fatalf("expected 1 batch before stop, got %d", len(provider.calls))
	}
	if segments[0].Translated == nil {
		t.Fatal("completed batch translation lost")
	}
	if segments[1].Translated != nil || segments[2].Translated != nil {
		t.Fatal("stop must not translate further batches")
	}
}

func TestTranslateSkipsAlreadyTranslated(t *testing.T) {
	provider := &fakeProvider{name: "fake", limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000}}
	segments := makeSegments("one", "two")
	done := "already"
	segments[0].Translated = &done

	tr := translator.New(provider)
	if err := tr.Translate(context.Background(), 1, segments, "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(provider.calls) != 1 || len(provider.calls[0]) != 1 {
		t.Fatalf("unexpected calls %v", provider.calls)
	}
	if *segments[0].Translated != "already" {
		t.Fatal("existing translation overwritten")
	}
}

func TestTranslateCheckpointFailureAborts(t *testing.T) {
	provider := &fakeProvider{name: "fake", limits: providers.Limits{MaxBatchItems: 1, MaxBatchChars: 1000}}
	tr := translator.New(provider,
		translator.WithCheckpoint(func(context.Context, []subtitles.Segment) error {
			return fmt.Errorf("disk full")
		}),
	)
	err := tr.Translate(context.Background(), 1, makeSegments("one", "two"), "es")
	if err == nil {
		t.Fatal("expected checkpoint error")
	}
	if len(provider.calls) != 1 {
		t.Fatalf("expected abort after first batch, got %d calls", len(provider.calls))
	}
}
