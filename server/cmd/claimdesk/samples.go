package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claimdesk/claimdesk/server/internal/format"
	"github.com/claimdesk/claimdesk/server/internal/samples"
)

func newSamplesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "samples",
		Short: "List the bundled sample claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := samples.All()
			if err != nil {
				return err
			}
			if g.json() {
				return writeJSON(cmd.OutOrStdout(), all)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), format.Samples(all, g.mode()))
			return err
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print a sample claim as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := samples.Raw(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	})
	return cmd
}
