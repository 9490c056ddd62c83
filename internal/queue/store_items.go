package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// NewJob enqueues a video file for transcription and translation. When an
// active job already exists for the same source path, that job is returned
// unchanged and created is false.
func (s *Store) NewJob(ctx context.Context, sourcePath, provider, targetLanguage, settingsJSON string) (*Item, bool, error) {
	ctx = ensureContext(ctx)

	existing, err := s.FindActiveBySource(ctx, sourcePath)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	title := inferTitleFromPath(sourcePath)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            source_path, title, status, provider, target_language, settings_json,
            created_at, updated_at, progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sourcePath,
		title,
		StatusPending,
		nullableString(provider),
		nullableString(targetLanguage),
		nullableString(settingsJSON),
		timestamp,
		timestamp,
		nil,
		0.0,
		nil,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// Insert writes an item row exactly as given, bypassing the active-source
// dedup in NewJob. Project restore needs this: a saved queue can legitimately
// hold two jobs for the same source path, such as a failed job retried back
// to pending next to its re-queued twin.
func (s *Store) Insert(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if _, ok := statusSet[item.Status]; !ok {
		return nil, fmt.Errorf("insert item: unknown status %q", item.Status)
	}

	now := time.Now().UTC()
	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}
	title := item.Title
	if title == "" {
		title = inferTitleFromPath(item.SourcePath)
	}

	res, err := s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO queue_items (
            source_path, title, status, provider, target_language, segments_json,
            settings_json, output_file, error_message, created_at, updated_at,
            progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SourcePath,
		nullableString(title),
		item.Status,
		nullableString(item.Provider),
		nullableString(item.TargetLanguage),
		nullableString(item.SegmentsJSON),
		nullableString(item.SettingsJSON),
		nullableString(item.OutputFile),
		nullableString(item.ErrorMessage),
		created.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindActiveBySource returns the first non-terminal item for a source path.
func (s *Store) FindActiveBySource(ctx context.Context, sourcePath string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE source_path = ? AND status NOT IN (?, ?) ORDER BY id LIMIT 1`,
		sourcePath,
		StatusCompleted,
		StatusFailed,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ensureContext(ctx),
		`UPDATE queue_items
         SET source_path = ?, title = ?, status = ?, provider = ?,
             target_language = ?, segments_json = ?, settings_json = ?,
             output_file = ?, error_message = ?, updated_at = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             last_heartbeat = ?, stop_requested = ?
         WHERE id = ?`,
		item.SourcePath,
		nullableString(item.Title),
		item.Status,
		nullableString(item.Provider),
		nullableString(item.TargetLanguage),
		nullableString(item.SegmentsJSON),
		nullableString(item.SettingsJSON),
		nullableString(item.OutputFile),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		boolToInt(item.StopRequested),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextForStatuses returns the oldest item matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const itemColumns = "id, source_path, title, status, provider, target_language, segments_json, settings_json, output_file, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, last_heartbeat, stop_requested"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		sourcePath       string
		title            sql.NullString
		statusStr        string
		provider         sql.NullString
		targetLanguage   sql.NullString
		segmentsJSON     sql.NullString
		settingsJSON     sql.NullString
		outputFile       sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
		stopRequested    sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&title,
		&statusStr,
		&provider,
		&targetLanguage,
		&segmentsJSON,
		&settingsJSON,
		&outputFile,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&stopRequested,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		SourcePath:      sourcePath,
		Title:           title.String,
		Status:          Status(statusStr),
		Provider:        provider.String,
		TargetLanguage:  targetLanguage.String,
		SegmentsJSON:    segmentsJSON.String,
		SettingsJSON:    settingsJSON.String,
		OutputFile:      outputFile.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	if stopRequested.Valid {
		item.StopRequested = stopRequested.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func inferTitleFromPath(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	if base == "" {
		return "Untitled"
	}
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)
	cleaned := strings.TrimSpace(base)
	if cleaned == "" {
		return "Untitled"
	}
	return cleaned
}
