package format

import (
	"fmt"
	"strings"

	"github.com/claimdesk/claimdesk/server/internal/policy"
	"github.com/claimdesk/claimdesk/server/internal/receiver"
	"github.com/claimdesk/claimdesk/server/internal/rules"
	"github.com/claimdesk/claimdesk/server/internal/samples"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

const summaryWidth = 60

// Decision renders one processed claim as a field/value table.
func Decision(rec *store.Record, m Mode) string {
	res := rec.Result
	d := res.Decision

	t := NewTable(m)
	t.Header("Field", "Value")
	t.Row("Claim", rec.ClaimNumber)
	t.Row("Outcome", string(d.Outcome))
	t.Row("Covered", YesNo(d.Covered))
	t.Row("Policy section", d.PolicySection)
	t.Row("Deductible", rules.Money(d.Deductible))
	t.Row("Recommended payout", rules.Money(d.RecommendedPayout))
	if d.Subrogation != nil {
		target := d.Subrogation.Target
		if target == "" {
			target = "-"
		}
		t.Row("Subrogation", fmt.Sprintf("%s (%s)", YesNo(d.Subrogation.Recommended), target))
	}
	t.Row("Severity", res.FNOLSummary.SeverityLevel)
	t.Row("Priority", fmt.Sprintf("%s, %s, %dh SLA", res.Triage.Priority, res.Triage.Assignment, res.Triage.TargetSLAHours))
	t.Row("Fraud risk", fmt.Sprintf("%.2f%s", res.FraudSignal.RiskScore, siuMark(res.FraudSignal.SIUReferral)))
	if len(res.FraudSignal.Flags) > 0 {
		t.Row("Fraud flags", strings.Join(res.FraudSignal.Flags, "; "))
	}
	t.Row("Mode", string(res.Mode))
	t.Row("Processing", fmt.Sprintf("%.1f ms", rec.ProcessingMS))
	if o := rec.Override; o != nil {
		t.Row("Override", fmt.Sprintf("%s by %s", o.Action, orDash(o.Adjuster)))
	}
	if d.Notes != "" {
		t.Row("Notes", Truncate(d.Notes, summaryWidth*2))
	}
	return t.String()
}

// Batch renders the outcome of a batch run, one row per input claim, with
// the approved payout total in the footer.
func Batch(items []receiver.Item, m Mode) string {
	t := NewTable(m)
	t.Header("#", "Claim", "Outcome", "Priority", "Risk", "Payout", "Error")

	var total float64
	var failed int
	for _, it := range items {
		if it.Err != nil {
			failed++
			t.Row(it.Index+1, orDash(it.ClaimNumber), "failed", "-", "-", "-", Truncate(it.Err.Error(), summaryWidth))
			continue
		}
		res := it.Record.Result
		total += res.Decision.RecommendedPayout
		t.Row(it.Index+1, it.ClaimNumber, string(res.Decision.Outcome), res.Triage.Priority,
			fmt.Sprintf("%.2f", res.FraudSignal.RiskScore), rules.Money(res.Decision.RecommendedPayout), "")
	}
	t.Footer("", fmt.Sprintf("%d claims", len(items)), fmt.Sprintf("%d failed", failed), "", "", rules.Money(total), "")
	t.AlignRight(1, 5, 6)
	return t.String()
}

// Samples lists the bundled sample claims.
func Samples(all []samples.Sample, m Mode) string {
	t := NewTable(m)
	t.Header("Name", "Claim", "Repair estimate", "Loss")
	for _, s := range all {
		t.Row(s.Name, s.Claim.ClaimNumber, rules.Money(s.Claim.EstimatedRepairCost), Truncate(s.Claim.LossDescription, summaryWidth))
	}
	t.AlignRight(3)
	return t.String()
}

// PolicyMarkdown renders retrieved policy sections as a Markdown document.
func PolicyMarkdown(query string, chunks []policy.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Policy search: %s\n\n", query)
	if len(chunks) == 0 {
		b.WriteString("_No matching sections._\n")
		return b.String()
	}
	for _, c := range chunks {
		fmt.Fprintf(&b, "## %s\n\n", c.Title)
		fmt.Fprintf(&b, "*score %.3f, source %s*\n\n", c.Score, orDash(c.Source))
		b.WriteString(strings.TrimSpace(c.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

// --- helpers ---

// YesNo renders a bool for humans.
func YesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func siuMark(siu bool) string {
	if siu {
		return " (SIU referral)"
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
