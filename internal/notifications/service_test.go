package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"subtide/internal/config"
	"subtide/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "Example", ""); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "job started",
			send: func(svc notifications.Service) error {
				return svc.NotifyJobStarted(context.Background(), "Interstellar")
			},
			expectTitle:   "Subtide - Job Started",
			expectMessage: "Started processing: Interstellar",
			expectTags:    "subtide,job,started",
		},
		{
			name: "transcription completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyTranscriptionCompleted(context.Background(), "Interstellar", 42)
			},
			expectTitle:   "Subtide - Transcribed",
			expectMessage: "Transcription complete: Interstellar (42 segments)",
			expectTags:    "subtide,transcribe,completed",
		},
		{
			name: "translation completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyTranslationCompleted(context.Background(), "Interstellar", "es")
			},
			expectTitle:   "Subtide - Translated",
			expectMessage: "Translation complete: Interstellar (es)",
			expectTags:    "subtide,translate,completed",
		},
		{
			name: "job completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyJobCompleted(context.Background(), "Interstellar", "Interstellar.es.srt")
			},
			expectTitle:    "Subtide - Complete",
			expectMessage:  "Subtitles ready: Interstellar\nFile: Interstellar.es.srt",
			expectTags:     "subtide,job,completed",
			expectPriority: "high",
		},
		{
			name: "job failed",
			send: func(svc notifications.Service) error {
				return svc.NotifyJobFailed(context.Background(), "Interstellar", "provider exploded")
			},
			expectTitle:    "Subtide - Job Failed",
			expectMessage:  "Failed: Interstellar\nprovider exploded",
			expectTags:     "subtide,job,failed",
			expectPriority: "high",
		},
		{
			name: "queue completed with failures",
			send: func(svc notifications.Service) error {
				return svc.NotifyQueueCompleted(context.Background(), 3, 1, 90*time.Second)
			},
			expectTitle:   "Subtide - Queue Complete (with errors)",
			expectMessage: "Queue processing complete: 3 succeeded, 1 failed in 1m30s",
			expectTags:    "subtide,queue,completed",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("disk full"), "export")
			},
			expectTitle:    "Subtide - Error",
			expectMessage:  "Error with export: disk full",
			expectTags:     "subtide,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Transcription = false
	cfg.Notifications.Translation = false
	cfg.Notifications.Queue = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	calls := []func() error{
		func() error { return svc.NotifyJobStarted(ctx, "x") },
		func() error { return svc.NotifyTranscriptionCompleted(ctx, "x", 1) },
		func() error { return svc.NotifyTranslationCompleted(ctx, "x", "es") },
		func() error { return svc.NotifyJobCompleted(ctx, "x", "") },
		func() error { return svc.NotifyJobFailed(ctx, "x", "boom") },
		func() error { return svc.NotifyQueueCompleted(ctx, 1, 0, time.Second) },
		func() error { return svc.NotifyError(ctx, errors.New("boom"), "test") },
	}
	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("call %d: expected nil for disabled category, got %v", i, err)
		}
	}
}
