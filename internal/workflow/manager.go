package workflow

import (
	"log/slog"
	"sync"
	"time"

	"subtide/internal/config"
	"subtide/internal/notifications"
	"subtide/internal/queue"
	"subtide/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Transcriber stage.Handler
	Translator  stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
	slot             chan struct{}
}

// Manager coordinates queue processing using the registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration
	workers      int

	heartbeat *HeartbeatMonitor

	stages       []pipelineStage
	stageByStart map[queue.Status]*pipelineStage
	startOrder   []queue.Status

	claimMu sync.Mutex

	mu       sync.RWMutex
	running  bool
	cancel   func()
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item

	queueActive bool
	queueStart  time.Time
	processed   int
	failed      int
}

// NewManager constructs a workflow manager with the default ntfy notifier.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, set StageSet) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, set, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, set StageSet, notifier notifications.Service) *Manager {
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	translateSlots := cfg.Translation.MaxConcurrent
	if translateSlots <= 0 {
		translateSlots = 1
	}

	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		workers:      workers,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		stages: []pipelineStage{
			{
				name:             "transcribe",
				handler:          set.Transcriber,
				startStatus:      queue.StatusPending,
				processingStatus: queue.StatusTranscribing,
				doneStatus:       queue.StatusTranscribed,
				slot:             make(chan struct{}, 1),
			},
			{
				name:             "translate",
				handler:          set.Translator,
				startStatus:      queue.StatusTranscribed,
				processingStatus: queue.StatusTranslating,
				doneStatus:       queue.StatusCompleted,
				slot:             make(chan struct{}, translateSlots),
			},
		},
	}

	m.stageByStart = make(map[queue.Status]*pipelineStage, len(m.stages))
	m.startOrder = make([]queue.Status, 0, len(m.stages))
	for i := range m.stages {
		stg := &m.stages[i]
		m.stageByStart[stg.startStatus] = stg
		m.startOrder = append(m.startOrder, stg.startStatus)
	}
	return m
}

func (m *Manager) stageForStatus(status queue.Status) (*pipelineStage, bool) {
	stg, ok := m.stageByStart[status]
	return stg, ok
}
