package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"subtide/internal/config"
	"subtide/internal/logging"
	"subtide/internal/queue"
	"subtide/internal/transcriber"
	"subtide/internal/translator"
	"subtide/internal/vault"
	"subtide/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process the queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runWorkflow(cmd, cfg)
		},
	}
}

func runWorkflow(cmd *cobra.Command, cfg *config.Config) error {
	lockPath := filepath.Join(cfg.Paths.LogDir, "subtide.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another subtide instance is already running")
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	keyVault := vault.New(cfg.Paths.CredentialsFile)
	transcribeSvc := transcriber.NewService(cfg.Transcription, cfg.Paths.WorkDir,
		transcriber.WithLogger(logging.NewComponentLogger(logger, "transcriber")))
	stages := workflow.StageSet{
		Transcriber: transcriber.NewStage(transcribeSvc),
		Translator: translator.NewStage(cfg, store, keyVault,
			translator.WithStageLogger(logging.NewComponentLogger(logger, "translator"))),
	}

	manager := workflow.NewManager(cfg, store, logger, stages)

	health, err := manager.Health(cmd.Context())
	if err != nil {
		return err
	}
	for _, stg := range health.Stages {
		if !stg.Ready {
			logger.Warn("stage not ready",
				logging.String(logging.FieldStage, stg.Name),
				logging.String("detail", stg.Detail),
			)
		}
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(runCtx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Processing queue. Press Ctrl+C to stop.")

	<-runCtx.Done()
	manager.Stop()
	fmt.Fprintln(cmd.OutOrStdout(), "Stopped.")
	return nil
}
