package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

const fnolPrompt = `You support a claims intake specialist.
Read the First Notice of Loss below and summarise it as JSON with:
  incident_summary     what happened, in one or two sentences
  impact_assessment    damage to the vehicle and any human impact
  severity_level       Low, Medium or High
  recommended_actions  the carrier's next steps

Claim:
%s`

const triagePrompt = `You route auto claims to adjuster teams.
Decide the triage for this claim and answer as JSON with:
  priority          Immediate, High, Standard or Low
  assignment        the team, e.g. Field adjuster, Desk adjuster, Express lane
  rationale         one or two sentences
  target_sla_hours  whole hours until first contact

Claim:
%s

FNOL summary:
%s`

const fraudPrompt = `You screen claims for the Special Investigations Unit.
Score the fraud risk from 0 to 1, name at most three red flags and
recommend whether to refer the claim. Weigh the loss description, how the
vehicle was being used and whether the repair estimate fits the vehicle.
Answer as JSON with risk_score, flags and recommendation.

Claim:
%s

Triage:
%s`

const queriesPrompt = `You decide which parts of an auto policy an adjuster must read.
From the claim below, consider the loss type, the repair estimate and the
policy number, then write three to five search queries covering:
  - coverage conditions for this kind of damage
  - how the deductible applies
  - endorsements relevant to the incident
  - exclusions that might apply

Answer as JSON: {"queries": [...]}

Claim:
%s`

const recommendationPrompt = `Using only the policy text below, decide for this claim:
  - whether the loss is covered
  - the deductible that applies
  - the settlement amount (repair cost less deductible when covered)
  - the policy section that governs the decision
  - any exclusion or special condition

Answer as JSON with policy_section, recommendation_summary, deductible and
settlement_amount. Say "covered" or "not covered" in the summary.

Claim:
%s

Policy text:
%s`

func render(tmpl string, parts ...any) string {
	args := make([]any, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case string:
			args[i] = v
		default:
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				args[i] = fmt.Sprintf("%+v", v)
				continue
			}
			args[i] = string(b)
		}
	}
	return strings.TrimSpace(fmt.Sprintf(tmpl, args...))
}
