package transcriber

import (
	"context"
	"fmt"
	"os"

	"subtide/internal/queue"
	"subtide/internal/services"
	"subtide/internal/stage"
	"subtide/internal/subtitles"
)

const stageName = "transcriber"

// Stage adapts the transcription service to the workflow pipeline.
type Stage struct {
	svc *Service
}

// NewStage wraps a transcription service as a workflow stage handler.
func NewStage(svc *Service) *Stage {
	return &Stage{svc: svc}
}

// Prepare verifies the source file still exists before the job is claimed.
func (s *Stage) Prepare(_ context.Context, item *queue.Item) error {
	if _, err := os.Stat(item.SourcePath); err != nil {
		return services.Wrap(services.ErrNotFound, stageName, "prepare",
			fmt.Sprintf("source file missing: %s", item.SourcePath), err)
	}
	item.SetProgress("Transcribing", "Running speech recognition", 0)
	return nil
}

// Execute runs the external transcriber and stores the segment payload on the
// item. The workflow manager persists the item when advancing the status.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	segments, err := s.svc.Transcribe(ctx, item.SourcePath)
	if err != nil {
		return err
	}

	payload, err := subtitles.EncodeSegments(segments)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "execute", "encode segments", err)
	}
	item.SegmentsJSON = payload
	item.SetProgress("Transcribed", fmt.Sprintf("%d segments recognized", len(segments)), 100)
	return nil
}

// HealthCheck reports whether the transcription command is available.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.svc.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
