package types

import (
	"fmt"
	"strings"
)

// Severity levels of an FNOL summary.
const (
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

// Triage priorities, most urgent first.
const (
	PriorityImmediate = "Immediate"
	PriorityHigh      = "High"
	PriorityStandard  = "Standard"
	PriorityLow       = "Low"
)

// Priorities lists the triage priorities in queue order.
var Priorities = []string{PriorityImmediate, PriorityHigh, PriorityStandard, PriorityLow}

// PriorityRank returns the queue position of p; unknown priorities sort last.
func PriorityRank(p string) int {
	for i, v := range Priorities {
		if v == p {
			return i
		}
	}
	return len(Priorities)
}

// MaxFraudFlags caps FraudSignal.Flags.
const MaxFraudFlags = 3

// MaxPolicyQueries caps PolicyQueries.Queries.
const MaxPolicyQueries = 5

// FNOLSummary is the output of the FNOL extraction stage.
type FNOLSummary struct {
	IncidentSummary    string   `json:"incident_summary" validate:"required"`
	ImpactAssessment   string   `json:"impact_assessment" validate:"required"`
	SeverityLevel      string   `json:"severity_level" validate:"oneof=Low Medium High"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Normalize canonicalises the severity level.
func (f *FNOLSummary) Normalize() {
	f.SeverityLevel = canonical(f.SeverityLevel, SeverityLow, SeverityMedium, SeverityHigh)
	if f.RecommendedActions == nil {
		f.RecommendedActions = []string{}
	}
}

// TriageDecision is the output of the triage stage.
type TriageDecision struct {
	Priority       string `json:"priority" validate:"oneof=Immediate High Standard Low"`
	Assignment     string `json:"assignment" validate:"required"`
	Rationale      string `json:"rationale" validate:"required"`
	TargetSLAHours int    `json:"target_sla_hours" validate:"gt=0"`
}

// Normalize canonicalises the priority.
func (t *TriageDecision) Normalize() {
	t.Priority = canonical(t.Priority, Priorities...)
}

// FieldAssignment reports whether the claim was routed to a field adjuster,
// which requires an in-person inspection.
func (t *TriageDecision) FieldAssignment() bool {
	return strings.Contains(strings.ToLower(t.Assignment), "field")
}

// FraudSignal is the output of the fraud scoring stage.
type FraudSignal struct {
	RiskScore      float64  `json:"risk_score" validate:"gte=0,lte=1"`
	Flags          []string `json:"flags" validate:"max=3"`
	Recommendation string   `json:"recommendation" validate:"required"`
	SIUReferral    bool     `json:"siu_referral"`
}

// Normalize trims the flag list to MaxFraudFlags.
func (f *FraudSignal) Normalize() {
	if f.Flags == nil {
		f.Flags = []string{}
	}
	if len(f.Flags) > MaxFraudFlags {
		f.Flags = f.Flags[:MaxFraudFlags]
	}
}

// PolicyQueries is the list of retrieval queries for the coverage stage.
type PolicyQueries struct {
	Queries []string `json:"queries" validate:"min=1,max=5,dive,required"`
}

// Normalize drops blank queries and trims the list to MaxPolicyQueries.
func (q *PolicyQueries) Normalize() {
	out := q.Queries[:0]
	for _, s := range q.Queries {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > MaxPolicyQueries {
		out = out[:MaxPolicyQueries]
	}
	q.Queries = out
}

// PolicyRecommendation is the coverage recommendation before guardrails.
type PolicyRecommendation struct {
	PolicySection         string   `json:"policy_section" validate:"required"`
	RecommendationSummary string   `json:"recommendation_summary" validate:"required"`
	Deductible            *float64 `json:"deductible,omitempty" validate:"omitempty,gte=0"`
	SettlementAmount      *float64 `json:"settlement_amount,omitempty" validate:"omitempty,gte=0"`
}

// Outcome is the final disposition of a claim.
type Outcome string

const (
	OutcomeApprove   Outcome = "approve"
	OutcomeDeny      Outcome = "deny"
	OutcomeTotalLoss Outcome = "total_loss"
)

// Subrogation is a recommendation to recover the payout from the at-fault
// party's insurer.
type Subrogation struct {
	Recommended bool   `json:"recommended"`
	Target      string `json:"target,omitempty"`
	Reason      string `json:"reason" validate:"required"`
}

// ClaimDecision is the final, guardrailed decision for a claim.
type ClaimDecision struct {
	ClaimNumber       string       `json:"claim_number" validate:"required"`
	Covered           bool         `json:"covered"`
	Outcome           Outcome      `json:"outcome" validate:"oneof=approve deny total_loss"`
	Deductible        float64      `json:"deductible" validate:"gte=0"`
	RecommendedPayout float64      `json:"recommended_payout" validate:"gte=0"`
	PolicySection     string       `json:"policy_section" validate:"required"`
	Subrogation       *Subrogation `json:"subrogation,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	Overridden        bool         `json:"overridden,omitempty"`
}

// Mode reports whether a pipeline calls the LLM.
type Mode string

const (
	ModeLLM      Mode = "llm"
	ModeFallback Mode = "fallback"
)

// Source records which path produced a stage output.
type Source string

const (
	SourceLLM   Source = "llm"
	SourceRules Source = "rules"
)

// Stage names used in Result.Stages and pipeline events.
const (
	StageFNOL     = "fnol"
	StageTriage   = "triage"
	StageFraud    = "fraud"
	StageQueries  = "policy_queries"
	StageCoverage = "coverage"
)

// Stages lists the stages in execution order.
var Stages = []string{StageFNOL, StageTriage, StageFraud, StageQueries, StageCoverage}

// Result is everything the pipeline produced for one claim.
type Result struct {
	Decision        ClaimDecision     `json:"decision"`
	FNOLSummary     FNOLSummary       `json:"fnol_summary"`
	Triage          TriageDecision    `json:"triage"`
	FraudSignal     FraudSignal       `json:"fraud_signal"`
	PolicyQueries   []string          `json:"policy_queries"`
	PolicyTextChars int               `json:"policy_text_chars"`
	Mode            Mode              `json:"mode"`
	Stages          map[string]Source `json:"stages"`
}

// Validate checks every part of the result.
func (r *Result) Validate() error {
	parts := []struct {
		name string
		v    any
	}{
		{"decision", &r.Decision},
		{"fnol_summary", &r.FNOLSummary},
		{"triage", &r.Triage},
		{"fraud_signal", &r.FraudSignal},
	}
	for _, p := range parts {
		if err := Validate(p.v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, p.name, err)
		}
	}
	if r.Decision.Outcome == OutcomeDeny && r.Decision.RecommendedPayout != 0 {
		return fmt.Errorf("%w: decision: denied claim with payout %.2f", ErrInvalidRecord, r.Decision.RecommendedPayout)
	}
	for _, s := range Stages {
		if _, ok := r.Stages[s]; !ok {
			return fmt.Errorf("%w: stage %q missing", ErrInvalidRecord, s)
		}
	}
	return nil
}

// Declaration is the declarations page of one policy.
type Declaration struct {
	PolicyNumber            string   `yaml:"policy_number" json:"policy_number"`
	Holder                  string   `yaml:"holder" json:"holder"`
	State                   string   `yaml:"state" json:"state"`
	CollisionDeductible     float64  `yaml:"collision_deductible" json:"collision_deductible"`
	ComprehensiveDeductible float64  `yaml:"comprehensive_deductible" json:"comprehensive_deductible"`
	CollisionLimit          float64  `yaml:"collision_limit" json:"collision_limit"`
	Endorsements            []string `yaml:"endorsements" json:"endorsements"`
}
