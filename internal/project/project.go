package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"subtide/internal/queue"
)

// SchemaVersion is the current project file schema. Files written by newer
// releases are rejected rather than partially decoded.
const SchemaVersion = 1

// ErrIncompatibleProject indicates the file's schema version is newer than
// this build supports. The file is left untouched.
var ErrIncompatibleProject = errors.New("incompatible project file")

// Job is one queue item in portable form.
type Job struct {
	SourcePath     string          `json:"source_path"`
	Title          string          `json:"title,omitempty"`
	Status         string          `json:"status"`
	Provider       string          `json:"provider,omitempty"`
	TargetLanguage string          `json:"target_language,omitempty"`
	Segments       json.RawMessage `json:"segments,omitempty"`
	Settings       json.RawMessage `json:"settings,omitempty"`
	OutputFile     string          `json:"output_file,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// File is the on-disk project document.
type File struct {
	SchemaVersion int             `json:"schema_version"`
	SavedAt       time.Time       `json:"saved_at"`
	Jobs          []Job           `json:"jobs"`
	Settings      json.RawMessage `json:"settings,omitempty"`
}

// Save writes the current queue contents to path atomically.
func Save(ctx context.Context, store *queue.Store, path string, settings json.RawMessage) error {
	items, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}

	file := File{
		SchemaVersion: SchemaVersion,
		SavedAt:       time.Now().UTC(),
		Jobs:          make([]Job, 0, len(items)),
		Settings:      settings,
	}
	for _, item := range items {
		job := Job{
			SourcePath:     item.SourcePath,
			Title:          item.Title,
			Status:         string(item.Status),
			Provider:       item.Provider,
			TargetLanguage: item.TargetLanguage,
			OutputFile:     item.OutputFile,
			ErrorMessage:   item.ErrorMessage,
			CreatedAt:      item.CreatedAt,
		}
		if item.SegmentsJSON != "" {
			job.Segments = json.RawMessage(item.SegmentsJSON)
		}
		if item.SettingsJSON != "" {
			job.Settings = json.RawMessage(item.SettingsJSON)
		}
		file.Jobs = append(file.Jobs, job)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("save project: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save project: create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save project: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save project: replace: %w", err)
	}
	return nil
}

// Load replaces the queue contents with the jobs from path. In-flight
// statuses are rewound to the start of their stage because in-flight work is
// not durable across a save. Returns the loaded file for settings access.
func Load(ctx context.Context, store *queue.Store, path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	// Check the version before decoding anything else.
	var header struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("load project: parse: %w", err)
	}
	if header.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: file has schema version %d, this build supports up to %d",
			ErrIncompatibleProject, header.SchemaVersion, SchemaVersion)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("load project: parse: %w", err)
	}
	for i, job := range file.Jobs {
		if _, ok := queue.ParseStatus(job.Status); !ok {
			return nil, fmt.Errorf("load project: job %d has unknown status %q", i+1, job.Status)
		}
		if job.SourcePath == "" {
			return nil, fmt.Errorf("load project: job %d has no source path", i+1)
		}
	}

	// Validation passed; now it is safe to replace queue state. Rows are
	// inserted directly rather than through NewJob so that two saved jobs
	// sharing a source path both survive the round trip.
	if _, err := store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("load project: clear queue: %w", err)
	}
	for _, job := range file.Jobs {
		status, _ := queue.ParseStatus(job.Status)
		item := &queue.Item{
			SourcePath:     job.SourcePath,
			Title:          job.Title,
			Status:         queue.StageStart(status),
			Provider:       job.Provider,
			TargetLanguage: job.TargetLanguage,
			SegmentsJSON:   string(job.Segments),
			SettingsJSON:   string(job.Settings),
			OutputFile:     job.OutputFile,
			ErrorMessage:   job.ErrorMessage,
			CreatedAt:      job.CreatedAt,
		}
		if _, err := store.Insert(ctx, item); err != nil {
			return nil, fmt.Errorf("load project: restore %s: %w", job.SourcePath, err)
		}
	}
	return &file, nil
}
