package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"subtide/internal/config"
	"subtide/internal/project"
	"subtide/internal/queue"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Save and restore the queue as a project file",
	}

	projectCmd.AddCommand(newProjectSaveCommand(ctx))
	projectCmd.AddCommand(newProjectLoadCommand(ctx))
	return projectCmd
}

func newProjectSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Write the current queue to a project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if err := project.Save(cmd.Context(), store, args[0], nil); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved project to %s\n", args[0])
				return nil
			})
		},
	}
}

func newProjectLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Replace the queue with the contents of a project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				file, err := project.Load(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d job(s) from %s\n", len(file.Jobs), args[0])
				return nil
			})
		},
	}
}
