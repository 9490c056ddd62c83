package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"subtide/internal/config"
	"subtide/internal/logging"
	"subtide/internal/services"
	"subtide/internal/subtitles"
)

// CommandRunner executes the external transcriber. Combined output is
// returned for error reporting; the transcript itself is read from the JSON
// file the tool writes.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service wraps the external transcription command.
type Service struct {
	cfg     config.Transcription
	workDir string
	runner  CommandRunner
	logger  *slog.Logger
}

// Option customizes the service.
type Option func(*Service)

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(s *Service) {
		if runner != nil {
			s.runner = runner
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a transcriber service writing tool output under workDir.
func NewService(cfg config.Transcription, workDir string, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		workDir: workDir,
		runner:  defaultRunner,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// HealthCheck verifies the transcriber command is on PATH.
func (s *Service) HealthCheck(_ context.Context) error {
	if _, err := exec.LookPath(s.cfg.Command); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcriber", "health",
			fmt.Sprintf("command %q not found", s.cfg.Command), err)
	}
	return nil
}

// Transcribe runs the external tool against the source file and returns the
// parsed, validated segments.
func (s *Service) Transcribe(ctx context.Context, sourcePath string) ([]subtitles.Segment, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return nil, services.Wrap(services.ErrValidation, "transcriber", "transcribe", "source path required", nil)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "transcriber", "transcribe", "source file missing", err)
	}
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcriber", "transcribe", "ensure work dir", err)
	}

	if s.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	outputPath := s.outputPath(sourcePath)
	args := s.buildArgs(sourcePath)

	s.logger.Info("running transcriber",
		logging.String("command", s.cfg.Command),
		logging.String("model", s.cfg.Model),
		logging.String("device", s.cfg.Device),
		logging.String("source", sourcePath),
	)

	started := time.Now()
	output, err := s.runner(ctx, s.cfg.Command, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, services.Wrap(services.ErrTimeout, "transcriber", "transcribe", "command interrupted", ctxErr)
		}
		detail := strings.TrimSpace(string(output))
		return nil, services.Wrap(services.ErrExternalTool, "transcriber", "transcribe", detail, err)
	}
	s.logger.Info("transcriber finished",
		logging.Duration("elapsed", time.Since(started)),
		logging.String("output", outputPath),
	)

	segments, err := loadSegments(outputPath)
	if err != nil {
		return nil, err
	}
	if err := subtitles.ValidateSequence(segments); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcriber", "transcribe", "invalid segment sequence", err)
	}
	return segments, nil
}

// outputPath derives where the tool writes its JSON transcript.
func (s *Service) outputPath(sourcePath string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(s.workDir, base+".json")
}

func (s *Service) buildArgs(sourcePath string) []string {
	args := []string{sourcePath, "--output_format", "json", "--output_dir", s.workDir}
	if model := strings.TrimSpace(s.cfg.Model); model != "" {
		args = append(args, "--model", model)
	}
	if device := strings.TrimSpace(s.cfg.Device); device != "" {
		args = append(args, "--device", device)
	}
	if computeType := strings.TrimSpace(s.cfg.ComputeType); computeType != "" {
		args = append(args, "--compute_type", computeType)
	}
	return args
}

type transcriptPayload struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func loadSegments(jsonPath string) ([]subtitles.Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcriber", "parse output", "transcript file missing", err)
	}
	var payload transcriptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcriber", "parse output", "malformed transcript json", err)
	}
	if len(payload.Segments) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "transcriber", "parse output", "transcript contains no segments", nil)
	}

	segments := make([]subtitles.Segment, 0, len(payload.Segments))
	for _, raw := range payload.Segments {
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitles.Segment{
			Start: time.Duration(raw.Start * float64(time.Second)),
			End:   time.Duration(raw.End * float64(time.Second)),
			Text:  text,
		})
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "transcriber", "parse output", "transcript contains only empty segments", nil)
	}
	return segments, nil
}
