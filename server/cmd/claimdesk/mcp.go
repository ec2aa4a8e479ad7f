package main

import (
	"github.com/spf13/cobra"

	"github.com/claimdesk/claimdesk/server/internal/mcpserver"
)

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve claimdesk tools over MCP on stdin/stdout",
		Long: `Starts an MCP server over stdin/stdout exposing process_claim, get_claim,
search_policy and list_samples. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcpserver.New(mcpserver.Config{
				Receiver:  a.receiver,
				Store:     a.store,
				Retriever: a.retriever,
				Version:   version,
				Logger:    g.log,
			})
			g.log.Info("starting claimdesk MCP server over stdio")
			return srv.Run(cmd.Context())
		},
	}
}
