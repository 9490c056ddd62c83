package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subtide/internal/logging"
	"subtide/internal/queue"
	"subtide/internal/services"
	"subtide/internal/subtitles"
	"subtide/internal/translator"
)

func (m *Manager) runJob(ctx context.Context, workerLogger *slog.Logger, stg *pipelineStage, item *queue.Item) error {
	select {
	case stg.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-stg.slot }()

	jobCtx := services.WithRequestID(
		services.WithStage(services.WithJobID(ctx, item.ID), stg.name),
		uuid.NewString(),
	)
	logger := logging.WithContext(jobCtx, workerLogger)

	if stg.startStatus == queue.StatusPending {
		if err := m.notifier.NotifyJobStarted(jobCtx, item.Title); err != nil {
			logger.Warn("job started notification failed", logging.Error(err))
		}
	}

	stageStart := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("source_file", strings.TrimSpace(item.SourcePath)),
	)

	if err := stg.handler.Prepare(jobCtx, item); err != nil {
		m.failJob(jobCtx, logger, stg, item, err)
		return err
	}
	if err := m.store.Update(jobCtx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		logger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(jobCtx, stg, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.failJob(jobCtx, logger, stg, item, execErr)
		return execErr
	}

	advanced, err := m.store.Advance(jobCtx, item.ID, stg.doneStatus, func(it *queue.Item) {
		it.SegmentsJSON = item.SegmentsJSON
		it.OutputFile = item.OutputFile
		it.ProgressStage = item.ProgressStage
		it.ProgressMessage = item.ProgressMessage
		it.ProgressPercent = item.ProgressPercent
	})
	if err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		logger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(advanced.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastItem(advanced)
	m.notifyStageDone(jobCtx, logger, stg, advanced)
	if advanced.Status == queue.StatusCompleted {
		m.recordFinished(jobCtx, false)
	}
	return nil
}

// executeWithHeartbeat runs the handler while a goroutine refreshes the job's
// heartbeat so a crashed process can be detected and the job reclaimed.
func (m *Manager) executeWithHeartbeat(ctx context.Context, stg *pipelineStage, item *queue.Item) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	execErr := stg.handler.Execute(ctx, item)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, stg *pipelineStage, item *queue.Item, stageErr error) {
	message := failureMessage(stg.name, stageErr)

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	if _, err := m.store.Advance(ctx, item.ID, queue.StatusFailed, func(it *queue.Item) {
		it.SegmentsJSON = item.SegmentsJSON
		it.SetFailed(message)
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	item.SetFailed(message)

	m.setLastError(stageErr)
	m.setLastItem(item)
	if err := m.notifier.NotifyJobFailed(ctx, item.Title, message); err != nil {
		logger.Warn("job failed notification failed", logging.Error(err))
	}
	m.recordFinished(ctx, true)
}

// failureMessage keeps the human-readable reason short. A stop request is
// reported as a plain cancellation rather than an error chain.
func failureMessage(stageName string, stageErr error) string {
	if errors.Is(stageErr, translator.ErrStopped) {
		return queue.CancelledReason
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		return fmt.Sprintf("%s failed", stageName)
	}
	return message
}

func (m *Manager) notifyStageDone(ctx context.Context, logger *slog.Logger, stg *pipelineStage, item *queue.Item) {
	var err error
	switch item.Status {
	case queue.StatusTranscribed:
		segments, parseErr := queueSegmentCount(item.SegmentsJSON)
		if parseErr != nil {
			segments = 0
		}
		err = m.notifier.NotifyTranscriptionCompleted(ctx, item.Title, segments)
	case queue.StatusCompleted:
		if notifyErr := m.notifier.NotifyTranslationCompleted(ctx, item.Title, item.TargetLanguage); notifyErr != nil {
			logger.Warn("translation notification failed", logging.Error(notifyErr))
		}
		err = m.notifier.NotifyJobCompleted(ctx, item.Title, item.OutputFile)
	}
	if err != nil {
		logger.Warn("stage notification failed", logging.Error(err))
	}
}

// recordFinished tracks per-run queue counters and fires the queue completion
// notification when nothing startable or in-flight remains.
func (m *Manager) recordFinished(ctx context.Context, failed bool) {
	m.mu.Lock()
	if failed {
		m.failed++
	} else {
		m.processed++
	}
	m.mu.Unlock()

	m.checkQueueCompletion(ctx)
}

func queueSegmentCount(payload string) (int, error) {
	segments, err := subtitles.DecodeSegments(payload)
	if err != nil {
		return 0, err
	}
	return len(segments), nil
}

func (m *Manager) markQueueActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.queueActive {
		m.queueActive = true
		m.queueStart = time.Now()
		m.processed = 0
		m.failed = 0
	}
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	summary, err := m.store.Health(ctx)
	if err != nil || summary.Pending > 0 || summary.Processing > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = false
	processed := m.processed
	failed := m.failed
	elapsed := time.Since(m.queueStart)
	m.mu.Unlock()

	if err := m.notifier.NotifyQueueCompleted(ctx, processed, failed, elapsed); err != nil {
		m.logger.Warn("queue completion notification failed", logging.Error(err))
	}
}
