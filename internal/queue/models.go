package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a translation job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusTranslating  Status = "translating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// CancelledReason is the error message recorded when a job is stopped by request.
const CancelledReason = "Cancelled"

var allStatuses = []Status{
	StatusPending,
	StatusTranscribing,
	StatusTranscribed,
	StatusTranslating,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusTranscribing: {},
	StatusTranslating:  {},
}

// allowedTransitions is the job state machine. A transition to the current
// status is always accepted as a no-op; anything absent here fails with
// ErrInvalidTransition.
var allowedTransitions = map[Status][]Status{
	StatusPending:      {StatusTranscribing},
	StatusTranscribing: {StatusTranscribed, StatusFailed},
	StatusTranscribed:  {StatusTranslating},
	StatusTranslating:  {StatusCompleted, StatusFailed},
	StatusFailed:       {StatusPending},
}

// stageStart maps a processing status to the durable checkpoint a job
// rewinds to when the stage is interrupted: in-flight work is not durable,
// so the stage restarts from scratch.
var stageStart = map[Status]Status{
	StatusTranscribing: StatusPending,
	StatusTranslating:  StatusTranscribed,
}

// Item represents a translation job persisted in SQLite.
type Item struct {
	ID              int64
	SourcePath      string
	Title           string
	Status          Status
	Provider        string
	TargetLanguage  string
	SegmentsJSON    string
	SettingsJSON    string
	OutputFile      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	StopRequested   bool
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the job lifecycle.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// StageStart returns the durable checkpoint for a processing status, or the
// status itself when it is already durable.
func StageStart(status Status) Status {
	if start, ok := stageStart[status]; ok {
		return start
	}
	return status
}

// TransitionAllowed reports whether moving from one status to another is
// permitted by the state machine. Same-status transitions are allowed (and
// treated as idempotent no-ops by Advance).
func TransitionAllowed(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SetProgress updates all three progress fields atomically.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.ProgressStage = "Failed"
	i.LastHeartbeat = nil
}
