package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subtide/internal/config"
)

const userAgent = "Subtide/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyJobStarted(ctx context.Context, title string) error
	NotifyTranscriptionCompleted(ctx context.Context, title string, segmentCount int) error
	NotifyTranslationCompleted(ctx context.Context, title, targetLanguage string) error
	NotifyJobCompleted(ctx context.Context, title, outputFile string) error
	NotifyJobFailed(ctx context.Context, title, reason string) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		cfg:      cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	cfg      config.Notifications
}

func (n *ntfyService) NotifyJobStarted(ctx context.Context, title string) error {
	if !n.cfg.Queue {
		return nil
	}
	data := payload{
		title:   "Subtide - Job Started",
		message: fmt.Sprintf("Started processing: %s", strings.TrimSpace(title)),
		tags:    []string{"subtide", "job", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscriptionCompleted(ctx context.Context, title string, segmentCount int) error {
	if !n.cfg.Transcription {
		return nil
	}
	data := payload{
		title:   "Subtide - Transcribed",
		message: fmt.Sprintf("Transcription complete: %s (%d segments)", strings.TrimSpace(title), segmentCount),
		tags:    []string{"subtide", "transcribe", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranslationCompleted(ctx context.Context, title, targetLanguage string) error {
	if !n.cfg.Translation {
		return nil
	}
	data := payload{
		title:   "Subtide - Translated",
		message: fmt.Sprintf("Translation complete: %s (%s)", strings.TrimSpace(title), strings.TrimSpace(targetLanguage)),
		tags:    []string{"subtide", "translate", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title, outputFile string) error {
	if !n.cfg.Queue {
		return nil
	}
	message := fmt.Sprintf("Subtitles ready: %s", strings.TrimSpace(title))
	if outputFile = strings.TrimSpace(outputFile); outputFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputFile)
	}
	data := payload{
		title:    "Subtide - Complete",
		message:  message,
		tags:     []string{"subtide", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title, reason string) error {
	if !n.cfg.Errors {
		return nil
	}
	data := payload{
		title:    "Subtide - Job Failed",
		message:  fmt.Sprintf("Failed: %s\n%s", strings.TrimSpace(title), strings.TrimSpace(reason)),
		tags:     []string{"subtide", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.cfg.Queue {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Subtide - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d items processed in %s", processed, durationText)
	} else {
		title = "Subtide - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"subtide", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.cfg.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Subtide - Error",
		message:  builder.String(),
		tags:     []string{"subtide", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Subtide - Test",
		message:  "Notification system test",
		tags:     []string{"subtide", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobStarted(context.Context, string) error                   { return nil }
func (noopService) NotifyTranscriptionCompleted(context.Context, string, int) error  { return nil }
func (noopService) NotifyTranslationCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string) error         { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error            { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
