package rules

import (
	"fmt"
	"strings"

	"github.com/claimdesk/claimdesk/pkg/types"
)

// Guard turns a coverage recommendation into the final decision. The
// deterministic checks run in this order and win over the recommendation:
//
//  1. commercial use without endorsement: deny, no payout
//  2. repair cost / ACV at or above the total-loss ratio: total loss,
//     payout ACV less deductible
//  3. repair cost at or above the collision limit: deny
//
// Otherwise the recommendation decides between approve and deny, and an
// approved payout never exceeds the repair estimate less the deductible. A
// subrogation recommendation is attached to any paid claim that
// qualifies. The returned rationale replaces the recommendation summary
// when a guardrail changed the outcome.
func (r *Rules) Guard(c *types.ClaimInfo, decl *types.Declaration, rec types.PolicyRecommendation) (types.ClaimDecision, string) {
	ded := r.Deductible(c, decl)
	d := types.ClaimDecision{
		ClaimNumber:   c.ClaimNumber,
		PolicySection: rec.PolicySection,
		Deductible:    ded,
	}
	rationale := rec.RecommendationSummary

	switch {
	case r.IsCommercialUse(c) && !r.HasCommercialEndorsement(c, decl):
		d.Outcome = types.OutcomeDeny
		d.PolicySection = SectionCommercialExclusion
		if !strings.Contains(strings.ToLower(rationale), "commercial") || recommendsPayment(rec) {
			rationale = fmt.Sprintf("Loss occurred during commercial use (%s) and policy %s carries no commercial endorsement; coverage denied.",
				commercialUse(c), c.PolicyNumber)
		}

	case r.IsTotalLoss(c):
		ratio, _ := r.RepairRatio(c)
		d.Outcome = types.OutcomeTotalLoss
		d.Covered = true
		d.RecommendedPayout = totalLossPayout(c, ded)
		d.PolicySection = SectionTotalLoss
		if rec.SettlementAmount == nil || *rec.SettlementAmount != d.RecommendedPayout {
			rationale = fmt.Sprintf("Repair estimate %s is %.0f%% of the %s actual cash value; settled as a total loss at %s after the %s deductible.",
				Money(c.EstimatedRepairCost), ratio*100, Money(c.ActualCashValue), Money(d.RecommendedPayout), Money(ded))
		}

	case c.EstimatedRepairCost >= r.CollisionLimit(decl):
		d.Outcome = types.OutcomeDeny
		d.PolicySection = SectionLimits
		if recommendsPayment(rec) {
			rationale = fmt.Sprintf("Repair estimate %s meets or exceeds the %s collision limit; coverage denied.",
				Money(c.EstimatedRepairCost), Money(r.CollisionLimit(decl)))
		}

	default:
		if rec.Deductible != nil {
			d.Deductible = *rec.Deductible
		}
		if recommendsPayment(rec) {
			d.Outcome = types.OutcomeApprove
			d.Covered = true
			if rec.SettlementAmount != nil {
				d.RecommendedPayout = *rec.SettlementAmount
			}
			if ceiling := max(0, c.EstimatedRepairCost-d.Deductible); d.RecommendedPayout > ceiling {
				rationale = fmt.Sprintf("%s Settlement capped at %s, the repair estimate less the %s deductible.",
					rationale, Money(ceiling), Money(d.Deductible))
				d.RecommendedPayout = ceiling
			}
		} else {
			d.Outcome = types.OutcomeDeny
		}
	}

	if d.PolicySection == "" {
		d.PolicySection = SectionCollision
	}
	if d.Outcome != types.OutcomeDeny {
		d.Subrogation = r.Subrogation(c, d.RecommendedPayout)
	}
	return d, Sanitize(rationale)
}

// Subrogation returns a recommendation when the insured carries no fault,
// the other party is identified and insured, and the payout exceeds the
// configured minimum. It returns nil otherwise.
func (r *Rules) Subrogation(c *types.ClaimInfo, payout float64) *types.Subrogation {
	if !zeroFault(c) {
		return nil
	}
	op := c.OtherParty
	if !op.Identified() || !op.Insured() {
		return nil
	}
	if op.AtFault != nil && !*op.AtFault {
		return nil
	}
	if payout <= r.cfg.SubrogationMinPayout {
		return nil
	}
	party := op.Name
	if party == "" {
		party = "policy " + op.PolicyNumber
	}
	return &types.Subrogation{
		Recommended: true,
		Target:      op.Insurer,
		Reason: fmt.Sprintf("Insured is 0%% at fault; pursue %s (%s) for the %s payout.",
			op.Insurer, party, Money(payout)),
	}
}

// recommendsPayment mirrors how a free-text recommendation is read: it is
// a payment if the summary says covered (and not "not covered") or a
// positive settlement is proposed.
func recommendsPayment(rec types.PolicyRecommendation) bool {
	s := strings.ToLower(rec.RecommendationSummary)
	if strings.Contains(s, "covered") && !strings.Contains(s, "not covered") {
		return true
	}
	return rec.SettlementAmount != nil && *rec.SettlementAmount > 0
}

func commercialUse(c *types.ClaimInfo) string {
	if c.VehicleUse != "" {
		return c.VehicleUse
	}
	return "disclosed in loss description"
}
