package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"subtide/internal/config"
	"subtide/internal/queue"
	"subtide/internal/subtitles"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var outputFlag string
	var original bool

	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Write a job's subtitles to a file",
		Long: "Write a job's stored segments as SRT, VTT, or plain text. " +
			"By default the translation is exported; --original exports the transcript instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("job %d not found", ids[0])
				}

				segments, err := subtitles.DecodeSegments(item.SegmentsJSON)
				if err != nil {
					return fmt.Errorf("job %d: %w", item.ID, err)
				}
				if len(segments) == 0 {
					return fmt.Errorf("job %d has no segments yet", item.ID)
				}

				formatValue := strings.TrimSpace(formatFlag)
				if formatValue == "" {
					formatValue = cfg.Output.Format
				}
				format, err := subtitles.ParseFormat(formatValue)
				if err != nil {
					return err
				}

				path := strings.TrimSpace(outputFlag)
				if path == "" {
					language := item.TargetLanguage
					if language == "" {
						language = cfg.Translation.TargetLanguage
					}
					path = subtitles.OutputPath(cfg.Paths.OutputDir, item.SourcePath, language, format)
				}

				opts := subtitles.RenderOptions{
					UseOriginal:   original,
					TxtTimestamps: cfg.Output.TxtTimestamps,
				}
				if err := subtitles.WriteFile(path, segments, format, opts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "", "Subtitle format: srt, vtt, or txt (defaults to config)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file path (defaults to the configured output directory)")
	cmd.Flags().BoolVar(&original, "original", false, "Export the untranslated transcript")
	return cmd
}
