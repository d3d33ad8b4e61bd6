package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crane-app/crane/internal/runtime"
)

func newLifecycleCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newLifecycleCommand(ctx, "start", "Start one or more containers", func(c runtime.Client) func(context.Context, string) error {
			return c.Start
		}),
		newLifecycleCommand(ctx, "stop", "Stop one or more containers", func(c runtime.Client) func(context.Context, string) error {
			return c.Stop
		}),
		newLifecycleCommand(ctx, "rm", "Remove one or more containers", func(c runtime.Client) func(context.Context, string) error {
			return c.Remove
		}),
	}
}

// newLifecycleCommand runs action against every id in order and stops at the
// first failure.
func newLifecycleCommand(ctx *commandContext, verb, short string, action func(runtime.Client) func(context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd.Context(), func(client runtime.Client) error {
				run := action(client)
				for _, id := range args {
					if err := run(cmd.Context(), id); err != nil {
						return fmt.Errorf("%s %s: %w", verb, id, err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}
