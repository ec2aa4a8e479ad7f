package rules

import (
	"math"
	"strings"
	"time"

	"github.com/claimdesk/claimdesk/pkg/types"
)

// Weights of the fallback fraud score. The base risk applies to every claim;
// each factor adds its weight when present.
const (
	baseRisk           = 0.20
	weightCommercial   = 0.20
	weightHighEstimate = 0.20
	weightLateReport   = 0.20
)

// Fraud flags raised by the fallback scorer.
const (
	FlagCommercialUse = "Commercial use disclosed"
	FlagHighEstimate  = "High repair estimate vs. vehicle value"
	FlagLateReport    = "Late reporting"
)

// SIU recommendations.
const (
	RecommendNoSIU   = "No SIU referral"
	RecommendSIUDesk = "Escalate for SIU desk review"
)

// FraudFactors holds the factor values (each 0 or 1) behind a fraud score.
type FraudFactors struct {
	Commercial   float64
	HighEstimate float64
	LateReport   float64
}

// Factors computes the fraud factors for c.
func (r *Rules) Factors(c *types.ClaimInfo) FraudFactors {
	var f FraudFactors
	if r.IsCommercialUse(c) {
		f.Commercial = 1
	}
	cost := c.EstimatedRepairCost
	if cost > r.cfg.CollisionLimit || (c.ActualCashValue > 0 && cost > c.ActualCashValue) {
		f.HighEstimate = 1
	}
	if h, ok := ReportDelay(c); ok && h > r.cfg.LateReportHours {
		f.LateReport = 1
	}
	return f
}

// Fraud is the fallback fraud-scoring stage.
//
//	risk = base + commercial*0.20 + high_estimate*0.20 + late_report*0.20
//
// clamped to [0, 1] and rounded to two decimals.
func (r *Rules) Fraud(c *types.ClaimInfo) types.FraudSignal {
	f := r.Factors(c)
	score := baseRisk +
		f.Commercial*weightCommercial +
		f.HighEstimate*weightHighEstimate +
		f.LateReport*weightLateReport
	score = math.Round(clamp01(score)*100) / 100

	flags := make([]string, 0, types.MaxFraudFlags)
	if f.Commercial > 0 {
		flags = append(flags, FlagCommercialUse)
	}
	if f.HighEstimate > 0 {
		flags = append(flags, FlagHighEstimate)
	}
	if f.LateReport > 0 {
		flags = append(flags, FlagLateReport)
	}

	sig := types.FraudSignal{RiskScore: score, Flags: flags}
	r.ApplySIU(&sig)
	return sig
}

// ApplySIU sets the referral flag and, for rule output, the recommendation
// from the SIU threshold. LLM recommendations are kept but the referral
// flag always follows the score.
func (r *Rules) ApplySIU(sig *types.FraudSignal) {
	sig.SIUReferral = sig.RiskScore >= r.cfg.SIUThreshold
	if sig.Recommendation != "" {
		return
	}
	if sig.SIUReferral {
		sig.Recommendation = RecommendSIUDesk
	} else {
		sig.Recommendation = RecommendNoSIU
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
}

// ParseDate parses the date formats seen on intake forms.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ReportDelay returns the hours between loss and report. ok is false when
// either date is missing or unparseable.
func ReportDelay(c *types.ClaimInfo) (hours float64, ok bool) {
	if c.ReportDate == "" {
		return 0, false
	}
	loss, ok1 := ParseDate(c.DateOfLoss)
	rep, ok2 := ParseDate(c.ReportDate)
	if !ok1 || !ok2 {
		return 0, false
	}
	return rep.Sub(loss).Hours(), true
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
