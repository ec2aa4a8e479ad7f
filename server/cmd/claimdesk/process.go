package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/format"
	"github.com/claimdesk/claimdesk/server/internal/receiver"
	"github.com/claimdesk/claimdesk/server/internal/samples"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

func newProcessCmd(g *globals) *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "process <file|sample>",
		Short: "Run one claim through the pipeline and print the decision",
		Example: `  claimdesk process john
  claimdesk process ./inbox/CLM-2024-117.json --explain
  claimdesk process total-loss --fallback -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadClaim(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.receiver.Process(cmd.Context(), c, !g.fallback)
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), g, rec, explain)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "also print the FNOL summary and decision notes")
	return cmd
}

func newBatchCmd(g *globals) *cobra.Command {
	var allSamples bool
	cmd := &cobra.Command{
		Use:   "batch <file|sample>...",
		Short: "Run several claims in parallel and print one row per claim",
		Example: `  claimdesk batch inbox/*.json
  claimdesk batch --all-samples`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if allSamples {
				args = append(samples.Names(), args...)
			}
			if len(args) == 0 {
				return errors.New("batch: no claims given")
			}
			return runBatch(cmd.Context(), cmd.OutOrStdout(), g, args)
		},
	}
	cmd.Flags().BoolVar(&allSamples, "all-samples", false, "process every bundled sample claim")
	return cmd
}

func runBatch(ctx context.Context, w io.Writer, g *globals, args []string) error {
	claims := make([]*types.ClaimInfo, len(args))
	loadErrs := make([]error, len(args))
	for i, arg := range args {
		claims[i], loadErrs[i] = loadClaim(arg)
		if loadErrs[i] != nil {
			g.log.Warn("skipping claim", zap.String("arg", arg), zap.Error(loadErrs[i]))
		}
	}

	a, err := newApp(ctx, g, false)
	if err != nil {
		return err
	}
	defer a.Close()

	items := a.receiver.ProcessBatch(ctx, claims, !g.fallback)
	for i := range items {
		if loadErrs[i] != nil {
			items[i].Err = loadErrs[i]
			items[i].ClaimNumber = args[i]
		}
	}

	if g.json() {
		return writeJSON(w, batchJSON(items))
	}
	_, err = fmt.Fprintln(w, format.Batch(items, g.mode()))
	return err
}

// loadClaim reads arg as a claim file, or as a sample name when no such
// file exists.
func loadClaim(arg string) (*types.ClaimInfo, error) {
	if _, err := os.Stat(arg); err == nil {
		return types.ParseClaimFile(arg)
	}
	c, err := samples.Load(arg)
	if errors.Is(err, samples.ErrUnknownSample) {
		return nil, fmt.Errorf("%q is neither a claim file nor a sample (see `claimdesk samples`)", arg)
	}
	return c, err
}

func printRecord(w io.Writer, g *globals, rec *store.Record, explain bool) error {
	if g.json() {
		return writeJSON(w, rec)
	}
	if _, err := fmt.Fprintln(w, format.Decision(rec, g.mode())); err != nil {
		return err
	}
	if !explain {
		return nil
	}
	md := explanation(rec)
	if g.mode() == format.Markdown {
		_, err := fmt.Fprintln(w, md)
		return err
	}
	out, err := format.RenderMarkdown(md, format.DefaultWrap, false)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func explanation(rec *store.Record) string {
	res := rec.Result
	md := fmt.Sprintf("## %s\n\n%s\n\n**Impact:** %s\n", rec.ClaimNumber, res.FNOLSummary.IncidentSummary, res.FNOLSummary.ImpactAssessment)
	if len(res.FNOLSummary.RecommendedActions) > 0 {
		md += "\n**Next steps**\n\n"
		for _, a := range res.FNOLSummary.RecommendedActions {
			md += "- " + a + "\n"
		}
	}
	md += "\n**Triage:** " + res.Triage.Rationale + "\n"
	if res.Decision.Notes != "" {
		md += "\n**Notes:** " + res.Decision.Notes + "\n"
	}
	return md
}

type batchItemJSON struct {
	ClaimNumber string        `json:"claim_number"`
	Record      *store.Record `json:"record,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func batchJSON(items []receiver.Item) []batchItemJSON {
	out := make([]batchItemJSON, len(items))
	for i, it := range items {
		out[i] = batchItemJSON{ClaimNumber: it.ClaimNumber, Record: it.Record}
		if it.Err != nil {
			out[i].Error = it.Err.Error()
		}
	}
	return out
}
