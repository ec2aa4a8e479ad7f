package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/claimdesk/claimdesk/server/internal/format"
	"github.com/claimdesk/claimdesk/server/internal/policy"
)

func newPolicyCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the policy document",
	}

	var k int
	search := &cobra.Command{
		Use:     "search <question>",
		Short:   "Retrieve the policy sections most relevant to a question",
		Example: `  claimdesk policy search "is rideshare use covered"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			corpus, _, err := loadPolicy(g.cfg.Retrieval)
			if err != nil {
				return err
			}
			a := &app{cfg: g.cfg, log: g.log}
			defer a.Close()
			r, err := a.localRetriever(cmd.Context(), corpus)
			if err != nil {
				return err
			}
			if k <= 0 {
				k = g.cfg.Retrieval.TopK
			}
			chunks, err := r.Retrieve(cmd.Context(), query, k)
			if err != nil {
				return err
			}
			return printChunks(cmd, g, query, chunks)
		},
	}
	search.Flags().IntVarP(&k, "top-k", "k", 0, "number of sections (default retrieval.top_k)")

	cmd.AddCommand(search)
	return cmd
}

func printChunks(cmd *cobra.Command, g *globals, query string, chunks []policy.Chunk) error {
	w := cmd.OutOrStdout()
	if g.json() {
		if chunks == nil {
			chunks = []policy.Chunk{}
		}
		return writeJSON(w, chunks)
	}
	md := format.PolicyMarkdown(query, chunks)
	if g.mode() == format.Markdown {
		_, err := fmt.Fprint(w, md)
		return err
	}
	out, err := format.RenderMarkdown(md, format.DefaultWrap, false)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}
