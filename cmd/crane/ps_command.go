package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/crane-app/crane/internal/runtime"
	"github.com/crane-app/crane/internal/state"
)

func newPsCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd.Context(), func(client runtime.Client) error {
				containers, err := client.ListContainers(cmd.Context())
				if err != nil {
					return fmt.Errorf("list containers: %w", err)
				}
				var store state.Store
				store.Update(containers, nil)
				containers = store.Snapshot().Containers

				out := cmd.OutOrStdout()
				if quiet {
					for _, c := range containers {
						fmt.Fprintln(out, c.ID)
					}
					return nil
				}
				if len(containers) == 0 {
					fmt.Fprintln(out, "No containers")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "NAME", "IMAGE", "STATE", "CPUS", "MEMORY", "PORTS", "CREATED"},
					containerRows(containers),
					4, 5,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print container ids")
	return cmd
}

func containerRows(containers []runtime.Container) [][]string {
	rows := make([][]string, 0, len(containers))
	for _, c := range containers {
		rows = append(rows, []string{
			shortID(c.ID),
			c.Name,
			c.Image,
			string(c.State),
			countOrDash(c.CPUs),
			bytesOrDash(c.MemoryBytes),
			portList(c.Ports),
			ageOrDash(c),
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func countOrDash(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func bytesOrDash(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func portList(ports []runtime.Port) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func ageOrDash(c runtime.Container) string {
	if c.Created.IsZero() {
		return "-"
	}
	return humanize.Time(c.Created)
}
