package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crane-app/crane/internal/runtime"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var spec runtime.CreateSpec

	cmd := &cobra.Command{
		Use:   "create IMAGE [ARGS...]",
		Short: "Create a container",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Image = args[0]
			spec.Args = args[1:]
			normalized, err := spec.Normalize()
			if err != nil {
				return err
			}
			return ctx.withClient(cmd.Context(), func(client runtime.Client) error {
				id, err := client.Create(cmd.Context(), normalized)
				if err != nil {
					return fmt.Errorf("create %s: %w", normalized.Image, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVar(&spec.Name, "name", "", "Container name (generated when empty)")
	flags.IntVar(&spec.CPUs, "cpus", 0, "Number of CPUs")
	flags.StringVarP(&spec.Memory, "memory", "m", "", "Memory limit, e.g. 512M")
	flags.StringSliceVarP(&spec.PublishPorts, "publish", "p", nil, "Publish a port (host:container)")
	flags.StringSliceVar(&spec.Networks, "network", nil, "Attach to a network")
	flags.BoolVar(&spec.AutoRemove, "rm", false, "Remove the container when it exits")
	return cmd
}
