package workflow

import (
	"context"
	"errors"
	"time"

	"subtide/internal/logging"
	"subtide/internal/queue"
)

// Start begins background processing. Jobs left in a processing status by a
// previous run are rewound to their stage checkpoint before workers start.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	for _, stg := range m.stages {
		if stg.handler == nil {
			m.mu.Unlock()
			return errors.New("workflow stages not configured")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	reset, err := m.store.ResetStuckProcessing(runCtx)
	if err != nil {
		m.Stop()
		return err
	}
	if reset > 0 {
		m.logger.Info("rewound interrupted jobs to stage checkpoints", logging.Int64("count", reset))
	}

	m.wg.Add(m.workers + 1)
	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i)
	}
	go m.runReclaimer(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight stages.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the manager has active workers.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := logging.NewComponentLogger(m.logger, "workflow-worker").With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, stg, err := m.claimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next queue item",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.waitFor(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if item == nil {
			m.waitFor(ctx, m.pollInterval)
			continue
		}

		if err := m.runJob(ctx, logger, stg, item); err != nil && errors.Is(err, context.Canceled) {
			return
		}
	}
}

// claimNext atomically picks the next startable job and moves it into the
// stage's processing status so no other worker can take it.
func (m *Manager) claimNext(ctx context.Context) (*queue.Item, *pipelineStage, error) {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()

	item, err := m.store.NextForStatuses(ctx, m.startOrder...)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, nil
	}
	stg, ok := m.stageForStatus(item.Status)
	if !ok {
		return nil, nil, nil
	}

	now := time.Now().UTC()
	claimed, err := m.store.Advance(ctx, item.ID, stg.processingStatus, func(it *queue.Item) {
		it.ErrorMessage = ""
		it.LastHeartbeat = &now
	})
	if err != nil {
		return nil, nil, err
	}
	m.markQueueActive()
	return claimed, stg, nil
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.heartbeatInterval
	if interval <= 0 {
		return
	}
	logger := logging.NewComponentLogger(m.logger, "workflow-reclaimer")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStaleItems(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("reclaim stale processing failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}
	}
}

func (m *Manager) waitFor(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		delay = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
