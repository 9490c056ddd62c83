package transcriber_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"subtide/internal/queue"
	"subtide/internal/services"
	"subtide/internal/testsupport"
	"subtide/internal/transcriber"
)

func TestStagePrepareRequiresSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := transcriber.NewService(cfg.Transcription, cfg.Paths.WorkDir)
	st := transcriber.NewStage(svc)

	item := &queue.Item{SourcePath: filepath.Join(t.TempDir(), "gone.mkv")}
	if err := st.Prepare(context.Background(), item); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestStageExecuteStoresSegmentPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := writeSourceFile(t, t.TempDir())

	svc := transcriber.NewService(cfg.Transcription, cfg.Paths.WorkDir,
		transcriber.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			writeTranscript(t, cfg.Paths.WorkDir, "clip",
				`{"segments":[{"start":0,"end":2,"text":"Hello"},{"start":2,"end":4,"text":"World"}]}`)
			return nil, nil
		}),
	)
	st := transcriber.NewStage(svc)

	item := &queue.Item{SourcePath: source, Status: queue.StatusTranscribing}
	if err := st.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.SegmentsJSON == "" {
		t.Fatal("segment payload not stored on item")
	}
	if !strings.Contains(item.SegmentsJSON, "Hello") || !strings.Contains(item.SegmentsJSON, "World") {
		t.Fatalf("payload missing segment text: %s", item.SegmentsJSON)
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("progress percent = %v", item.ProgressPercent)
	}
}

func TestStageExecutePropagatesToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := writeSourceFile(t, t.TempDir())

	svc := transcriber.NewService(cfg.Transcription, cfg.Paths.WorkDir,
		transcriber.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("gpu on fire"), errors.New("exit status 2")
		}),
	)
	st := transcriber.NewStage(svc)

	item := &queue.Item{SourcePath: source, Status: queue.StatusTranscribing}
	if err := st.Execute(context.Background(), item); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}
	if item.SegmentsJSON != "" {
		t.Fatalf("payload should stay empty on failure, got %s", item.SegmentsJSON)
	}
}

func TestStageHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	st := transcriber.NewStage(transcriber.NewService(cfg.Transcription, cfg.Paths.WorkDir))
	if health := st.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected ready, got %+v", health)
	}

	missing := cfg.Transcription
	missing.Command = "no-such-transcriber-binary"
	st = transcriber.NewStage(transcriber.NewService(missing, cfg.Paths.WorkDir))
	if health := st.HealthCheck(context.Background()); health.Ready || health.Detail == "" {
		t.Fatalf("expected unhealthy with detail, got %+v", health)
	}
}
