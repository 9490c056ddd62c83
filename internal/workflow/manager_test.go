package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"subtide/internal/config"
	"subtide/internal/logging"
	"subtide/internal/notifications"
	"subtide/internal/queue"
	"subtide/internal/stage"
	"subtide/internal/subtitles"
	"subtide/internal/testsupport"
	"subtide/internal/translator"
	"subtide/internal/workflow"
)

type fakeHandler struct {
	name    string
	prepare func(*queue.Item) error
	execute func(*queue.Item) error
	healthy bool
}

func (f *fakeHandler) Prepare(_ context.Context, item *queue.Item) error {
	if f.prepare != nil {
		return f.prepare(item)
	}
	return nil
}

func (f *fakeHandler) Execute(_ context.Context, item *queue.Item) error {
	if f.execute != nil {
		return f.execute(item)
	}
	return nil
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health {
	if f.healthy {
		return stage.Healthy(f.name)
	}
	return stage.Unhealthy(f.name, "not ready")
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) record(event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingNotifier) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func (r *recordingNotifier) NotifyJobStarted(context.Context, string) error {
	return r.record("job_started")
}

func (r *recordingNotifier) NotifyTranscriptionCompleted(context.Context, string, int) error {
	return r.record("transcription_completed")
}

func (r *recordingNotifier) NotifyTranslationCompleted(context.Context, string, string) error {
	return r.record("translation_completed")
}

func (r *recordingNotifier) NotifyJobCompleted(context.Context, string, string) error {
	return r.record("job_completed")
}

func (r *recordingNotifier) NotifyJobFailed(context.Context, string, string) error {
	return r.record("job_failed")
}

func (r *recordingNotifier) NotifyQueueCompleted(context.Context, int, int, time.Duration) error {
	return r.record("queue_completed")
}

func (r *recordingNotifier) NotifyError(context.Context, error, string) error {
	return r.record("error")
}

func (r *recordingNotifier) TestNotification(context.Context) error {
	return r.record("test")
}

var _ notifications.Service = (*recordingNotifier)(nil)

func fastConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	return cfg
}

func segmentPayload(t *testing.T, translated bool) string {
	t.Helper()
	segments := []subtitles.Segment{
		{Start: 0, End: time.Second, Text: "hello"},
		{Start: time.Second, End: 2 * time.Second, Text: "world"},
	}
	if translated {
		for i := range segments {
			value := "x-" + segments[i].Text
			segments[i].Translated = &value
		}
	}
	payload, err := subtitles.EncodeSegments(segments)
	if err != nil {
		t.Fatalf("EncodeSegments: %v", err)
	}
	return payload
}

func addJob(t *testing.T, store *queue.Store) *queue.Item {
	t.Helper()
	item, _, err := store.NewJob(context.Background(), "/videos/clip.mkv", "gemini", "es", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return item
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			item, _ := store.GetByID(context.Background(), id)
			t.Fatalf("job never reached %s, currently %+v", want, item)
		case <-time.After(10 * time.Millisecond):
		}
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
	}
}

func TestManagerProcessesJobThroughPipeline(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}

	transcribe := &fakeHandler{name: "transcribe", healthy: true,
		execute: func(item *queue.Item) error {
			item.SegmentsJSON = segmentPayload(t, false)
			item.SetProgress("Transcribed", "2 segments recognized", 100)
			return nil
		},
	}
	translate := &fakeHandler{name: "translate", healthy: true,
		execute: func(item *queue.Item) error {
			item.SegmentsJSON = segmentPayload(t, true)
			item.OutputFile = "/output/clip.es.srt"
			item.SetProgress("Completed", "done", 100)
			return nil
		},
	}

	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(),
		workflow.StageSet{Transcriber: transcribe, Translator: translate}, notifier)

	item := addJob(t, store)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	final := waitForStatus(t, store, item.ID, queue.StatusCompleted)
	if final.OutputFile != "/output/clip.es.srt" {
		t.Fatalf("output file = %q", final.OutputFile)
	}
	segments, err := subtitles.DecodeSegments(final.SegmentsJSON)
	if err != nil {
		t.Fatalf("DecodeSegments: %v", err)
	}
	if subtitles.TranslatedCount(segments) != 2 {
		t.Fatalf("translations persisted = %d", subtitles.TranslatedCount(segments))
	}

	for _, event := range []string{"job_started", "transcription_completed", "translation_completed", "job_completed"} {
		deadline := time.After(5 * time.Second)
		for !notifier.has(event) {
			select {
			case <-deadline:
				t.Fatalf("notification %q never sent: %v", event, notifier.snapshot())
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func TestManagerMarksFailedJob(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}

	transcribe := &fakeHandler{name: "transcribe", healthy: true,
		execute: func(item *queue.Item) error {
			return errors.New("speech model exploded")
		},
	}
	translate := &fakeHandler{name: "translate", healthy: true}

	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(),
		workflow.StageSet{Transcriber: transcribe, Translator: translate}, notifier)

	item := addJob(t, store)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	final := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if final.ErrorMessage != "speech model exploded" {
		t.Fatalf("error message = %q", final.ErrorMessage)
	}

	deadline := time.After(5 * time.Second)
	for !notifier.has("job_failed") {
		select {
		case <-deadline:
			t.Fatal("job_failed notification never sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerRecordsCancellationReason(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}

	transcribe := &fakeHandler{name: "transcribe", healthy: true}
	translate := &fakeHandler{name: "translate", healthy: true,
		execute: func(item *queue.Item) error {
			return translator.ErrStopped
		},
	}

	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(),
		workflow.StageSet{Transcriber: transcribe, Translator: translate}, notifier)

	item := addJob(t, store)
	item.Status = queue.StatusTranscribed
	item.SegmentsJSON = segmentPayload(t, false)
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	final := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if final.ErrorMessage != queue.CancelledReason {
		t.Fatalf("error message = %q, want %q", final.ErrorMessage, queue.CancelledReason)
	}
}

func TestManagerStartRewindsInterruptedJobs(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := addJob(t, store)
	item.Status = queue.StatusTranslating
	item.SegmentsJSON = segmentPayload(t, false)
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	done := make(chan struct{})
	translate := &fakeHandler{name: "translate", healthy: true,
		execute: func(it *queue.Item) error {
			it.SegmentsJSON = segmentPayload(t, true)
			it.OutputFile = "/output/clip.es.srt"
			close(done)
			return nil
		},
	}
	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(),
		workflow.StageSet{Transcriber: &fakeHandler{name: "transcribe", healthy: true}, Translator: translate},
		&recordingNotifier{})

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("interrupted job was not re-run from its checkpoint")
	}
	waitForStatus(t, store, item.ID, queue.StatusCompleted)
}

func TestManagerHealthAggregatesStages(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(),
		workflow.StageSet{
			Transcriber: &fakeHandler{name: "transcribe", healthy: true},
			Translator:  &fakeHandler{name: "translate", healthy: false},
		},
		&recordingNotifier{})

	health, err := manager.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Ready {
		t.Fatal("expected not ready when a stage is unhealthy")
	}
	if len(health.Stages) != 2 {
		t.Fatalf("stage count = %d", len(health.Stages))
	}
}
