package rules

import (
	"fmt"
	"strings"

	"github.com/claimdesk/claimdesk/pkg/types"
)

// Fallback actions.
const (
	ActionVerifyCoverage   = "Verify policy coverage and endorsements"
	ActionCollectEstimate  = "Collect repair shop estimate"
	ActionInspection       = "Schedule adjuster inspection"
	ActionExpressSettle    = "Offer express settlement"
	ActionPoliceReport     = "Obtain police report for the comprehensive loss"
	ActionInjuryExposure   = "Open bodily injury exposure and request medical records"
	ActionSubrogationIntro = "Notify the other party's insurer of a potential subrogation demand"
)

// Triage assignments.
const (
	AssignField  = "Field adjuster"
	AssignDesk   = "Desk adjuster"
	AssignInjury = "Bodily injury adjuster"
)

// FNOL is the fallback FNOL extraction stage.
func (r *Rules) FNOL(c *types.ClaimInfo) types.FNOLSummary {
	label := "Collision"
	if r.LossType(c) == LossComprehensive {
		label = "Comprehensive loss"
	}

	severity := types.SeverityMedium
	if c.EstimatedRepairCost > r.cfg.HighValue || c.InjuriesReported {
		severity = types.SeverityHigh
	}

	impact := fmt.Sprintf("Vehicle damage estimated at %s with description: %s.",
		Money(c.EstimatedRepairCost), strings.TrimRight(c.LossDescription, "."))
	if c.InjuriesReported {
		impact += " Injuries were reported."
	}

	actions := []string{ActionVerifyCoverage, ActionCollectEstimate}
	if c.EstimatedRepairCost > r.cfg.InspectionThreshold {
		actions = append(actions, ActionInspection)
	} else {
		actions = append(actions, ActionExpressSettle)
	}
	if r.LossType(c) == LossComprehensive && (c.PoliceReportFiled == nil || !*c.PoliceReportFiled) {
		actions = append(actions, ActionPoliceReport)
	}
	if c.InjuriesReported {
		actions = append(actions, ActionInjuryExposure)
	}
	if zeroFault(c) && c.OtherParty.Identified() {
		actions = append(actions, ActionSubrogationIntro)
	}

	return types.FNOLSummary{
		IncidentSummary:    fmt.Sprintf("%s reported for %s on %s.", label, c.ClaimantName, c.DateOfLoss),
		ImpactAssessment:   impact,
		SeverityLevel:      severity,
		RecommendedActions: actions,
	}
}

// Triage is the fallback triage stage.
func (r *Rules) Triage(c *types.ClaimInfo) types.TriageDecision {
	switch {
	case c.EstimatedRepairCost >= r.cfg.HighValue:
		return types.TriageDecision{
			Priority:       types.PriorityImmediate,
			Assignment:     AssignField,
			Rationale:      "High severity impact; route to senior field adjuster for on-site estimate.",
			TargetSLAHours: 8,
		}
	case c.InjuriesReported:
		return types.TriageDecision{
			Priority:       types.PriorityHigh,
			Assignment:     AssignInjury,
			Rationale:      "Injuries reported; bodily injury exposure needs early contact with all parties.",
			TargetSLAHours: 12,
		}
	default:
		return types.TriageDecision{
			Priority:       types.PriorityStandard,
			Assignment:     AssignDesk,
			Rationale:      "Standard claim with moderate damage; handle via desk team.",
			TargetSLAHours: 24,
		}
	}
}

// Queries is the fallback policy-query stage.
func (r *Rules) Queries(c *types.ClaimInfo) types.PolicyQueries {
	lossType := r.LossType(c)
	q := []string{
		"Coverage conditions for " + c.PolicyNumber,
		fmt.Sprintf("Deductible application for %s damage", lossType),
		"Settlement amount calculation for vehicle damage",
		"Exclusions for " + strings.ToLower(strings.TrimRight(c.LossDescription, ".")),
	}
	switch {
	case r.IsCommercialUse(c):
		q = append(q, "Commercial use exclusion for delivery and rideshare")
	case r.IsTotalLoss(c):
		q = append(q, "Total loss settlement at actual cash value")
	case c.InjuriesReported:
		q = append(q, "Bodily injury and medical payments coverage")
	case zeroFault(c) && c.OtherParty.Identified():
		q = append(q, "Subrogation when the insured is not at fault")
	default:
		q = append(q, "Policy limits and coverage details")
	}
	return types.PolicyQueries{Queries: q}
}

// Coverage is the fallback coverage recommendation. It follows the same
// precedence as Guard, so its summary always agrees with the final outcome.
func (r *Rules) Coverage(c *types.ClaimInfo, decl *types.Declaration) types.PolicyRecommendation {
	ded := r.Deductible(c, decl)
	cost := c.EstimatedRepairCost
	head := fmt.Sprintf("Claim %s on policy %s for %s", c.ClaimNumber, c.PolicyNumber, Money(cost))

	var (
		section string
		summary string
		payout  float64
	)
	switch {
	case r.IsCommercialUse(c) && !r.HasCommercialEndorsement(c, decl):
		section = SectionCommercialExclusion
		summary = head + " is not covered: the loss occurred during commercial use without a commercial endorsement. Recommend denying coverage."
	case r.IsTotalLoss(c):
		ratio, _ := r.RepairRatio(c)
		payout = totalLossPayout(c, ded)
		section = SectionTotalLoss
		summary = fmt.Sprintf("%s is covered as a total loss: repair estimate is %.0f%% of the %s actual cash value. Recommend paying %s after the %s deductible.",
			head, ratio*100, Money(c.ActualCashValue), Money(payout), Money(ded))
	case cost >= r.CollisionLimit(decl):
		section = SectionLimits
		summary = head + " exceeds collision limits; recommend denying coverage."
	default:
		payout = max(0, cost-ded)
		section = SectionCollision
		part := "Part D - Collision"
		if r.LossType(c) == LossComprehensive {
			section = SectionComprehensive
			part = "Part D - Comprehensive"
		}
		summary = fmt.Sprintf("%s is covered under %s. Recommend paying %s after the %s deductible.",
			head, part, Money(payout), Money(ded))
	}

	return types.PolicyRecommendation{
		PolicySection:         section,
		RecommendationSummary: Sanitize(summary),
		Deductible:            &ded,
		SettlementAmount:      &payout,
	}
}

func totalLossPayout(c *types.ClaimInfo, ded float64) float64 {
	return max(0, c.ActualCashValue-ded)
}

func zeroFault(c *types.ClaimInfo) bool {
	return c.FaultPercentage != nil && *c.FaultPercentage == 0
}
