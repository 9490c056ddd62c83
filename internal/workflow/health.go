package workflow

import (
	"context"

	"subtide/internal/queue"
	"subtide/internal/stage"
)

// Health aggregates stage readiness and queue counts.
type Health struct {
	Ready  bool
	Stages []stage.Health
	Queue  queue.HealthSummary
}

// Health runs every stage health check and summarizes the queue.
func (m *Manager) Health(ctx context.Context) (Health, error) {
	summary, err := m.store.Health(ctx)
	if err != nil {
		return Health{}, err
	}

	result := Health{Ready: true, Queue: summary}
	for _, stg := range m.stages {
		if stg.handler == nil {
			result.Stages = append(result.Stages, stage.Unhealthy(stg.name, "handler not configured"))
			result.Ready = false
			continue
		}
		health := stg.handler.HealthCheck(ctx)
		result.Stages = append(result.Stages, health)
		if !health.Ready {
			result.Ready = false
		}
	}
	return result, nil
}
