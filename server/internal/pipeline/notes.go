package pipeline

import (
	"fmt"
	"strings"

	"github.com/claimdesk/claimdesk/pkg/types"
)

// notes renders the adjuster notes attached to a decision, one line per
// stage, ending with the settlement rationale.
func notes(c *types.ClaimInfo, fnol *types.FNOLSummary, triage *types.TriageDecision, fraud *types.FraudSignal, d *types.ClaimDecision, rationale string) string {
	lines := make([]string, 0, 6)
	if d.PolicySection != "" {
		lines = append(lines, fmt.Sprintf("Policy %s · %s", c.PolicyNumber, d.PolicySection))
	}
	if fnol != nil {
		lines = append(lines, fmt.Sprintf("FNOL severity %s: %s", fnol.SeverityLevel, fnol.IncidentSummary))
	}
	if triage != nil {
		lines = append(lines, fmt.Sprintf("Triage ⇒ %s priority · %s (SLA %dh)",
			triage.Priority, triage.Assignment, triage.TargetSLAHours))
	}
	if fraud != nil {
		line := fmt.Sprintf("Fraud risk %.0f%% (%s)", fraud.RiskScore*100, fraud.Recommendation)
		if fraud.SIUReferral {
			line += " · SIU referral"
		}
		lines = append(lines, line)
	}
	if d.Subrogation != nil {
		lines = append(lines, "Subrogation: "+d.Subrogation.Reason)
	}
	lines = append(lines, "Settlement rationale: "+rationale)
	return strings.Join(lines, "\n")
}
