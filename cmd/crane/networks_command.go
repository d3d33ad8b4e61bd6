package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crane-app/crane/internal/runtime"
	"github.com/crane-app/crane/internal/state"
)

func newNetworksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List networks and their containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd.Context(), func(client runtime.Client) error {
				containers, err := client.ListContainers(cmd.Context())
				if err != nil {
					return fmt.Errorf("list containers: %w", err)
				}
				var store state.Store
				store.Update(containers, nil)
				snap := store.Snapshot()

				out := cmd.OutOrStdout()
				names := snap.NetworkNames()
				if len(names) == 0 {
					fmt.Fprintln(out, "No networks in use")
					return nil
				}
				var rows [][]string
				for _, name := range names {
					for _, id := range snap.Networks[name] {
						c, ok := snap.Container(id)
						if !ok {
							continue
						}
						rows = append(rows, []string{name, c.DisplayName(), attachmentAddress(c, name)})
					}
				}
				fmt.Fprintln(out, renderTable([]string{"NETWORK", "CONTAINER", "ADDRESS"}, rows))
				return nil
			})
		},
	}
}

func attachmentAddress(c runtime.Container, network string) string {
	for _, a := range c.Networks {
		if a.Network == network && a.Address != "" {
			return a.Address
		}
	}
	return "-"
}
