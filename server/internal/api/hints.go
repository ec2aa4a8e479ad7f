package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/rules"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

// Hint levels, most severe first.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
)

// elevatedRisk is the fraud score at which a claim without an SIU referral
// still gets a warning.
const elevatedRisk = 0.3

// ReviewHint is one plain-language note for the adjuster reviewing a claim.
// The dashboard shows Title as a chip and Detail on click.
type ReviewHint struct {
	// Key is a stable machine-readable identifier.
	Key   string `json:"key"`
	Level string `json:"level"`
	// Title is a short label, at most a few words.
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

// computeHints derives review hints from a stored claim, critical first.
func computeHints(rec *store.Record) []ReviewHint {
	res := rec.Result
	d := res.Decision
	fraud := res.FraudSignal
	var hints []ReviewHint

	if fraud.SIUReferral {
		hints = append(hints, ReviewHint{
			Key:   "siu_referral",
			Level: LevelCritical,
			Title: "SIU referral",
			Detail: fmt.Sprintf(
				"Fraud risk scored %.2f, above the referral threshold. Signals: %s. "+
					"Hold payment until the Special Investigations Unit has reviewed the file.",
				fraud.RiskScore, flagList(fraud.Flags)),
			Value: ptr(fraud.RiskScore),
		})
	} else if fraud.RiskScore >= elevatedRisk {
		hints = append(hints, ReviewHint{
			Key:   "elevated_risk",
			Level: LevelWarning,
			Title: "Elevated fraud risk",
			Detail: fmt.Sprintf(
				"Fraud risk scored %.2f (%s). Not enough for a referral, but verify the "+
					"loss details with the claimant before settling.",
				fraud.RiskScore, flagList(fraud.Flags)),
			Value: ptr(fraud.RiskScore),
		})
	}

	switch d.Outcome {
	case types.OutcomeDeny:
		hints = append(hints, ReviewHint{
			Key:   "coverage_denied",
			Level: LevelWarning,
			Title: "Coverage denied",
			Detail: fmt.Sprintf(
				"The recommendation denies coverage under %q. Confirm the exclusion applies "+
					"and send the denial letter citing that section.", d.PolicySection),
		})
	case types.OutcomeTotalLoss:
		hints = append(hints, ReviewHint{
			Key:   "total_loss",
			Level: LevelInfo,
			Title: "Total loss",
			Detail: fmt.Sprintf(
				"Repair cost reaches the total-loss threshold of the vehicle value. Settle at "+
					"%s and arrange salvage and title transfer.", rules.Money(d.RecommendedPayout)),
			Value: ptr(d.RecommendedPayout),
		})
	}

	if rec.Claim != nil && rec.Claim.InjuriesReported {
		hints = append(hints, ReviewHint{
			Key:    "injuries",
			Level:  LevelWarning,
			Title:  "Injuries reported",
			Detail: "Bodily injury exposure is handled outside the vehicle payout. Open a medical payments file and contact all parties.",
		})
	}

	if s := d.Subrogation; s != nil && s.Recommended {
		hints = append(hints, ReviewHint{
			Key:    "subrogation",
			Level:  LevelInfo,
			Title:  "Subrogation candidate",
			Detail: s.Reason,
			Value:  ptr(d.RecommendedPayout),
		})
	}

	if res.Mode == types.ModeLLM {
		var fellBack []string
		for _, st := range types.Stages {
			if res.Stages[st] == types.SourceRules {
				fellBack = append(fellBack, st)
			}
		}
		if len(fellBack) > 0 {
			hints = append(hints, ReviewHint{
				Key:   "rules_fallback",
				Level: LevelInfo,
				Title: "Model unavailable",
				Detail: fmt.Sprintf(
					"The model call failed for %s, so deterministic rules produced those outputs.",
					strings.Join(fellBack, ", ")),
			})
		}
	}

	if o := rec.Override; o != nil {
		detail := fmt.Sprintf("Adjuster action %q", o.Action)
		if o.Adjuster != "" {
			detail += " by " + o.Adjuster
		}
		if o.Reason != "" {
			detail += ": " + o.Reason
		}
		hints = append(hints, ReviewHint{
			Key:    "override",
			Level:  LevelInfo,
			Title:  "Adjuster override",
			Detail: detail + ".",
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank(hints[i].Level) < levelRank(hints[j].Level)
	})
	return hints
}

func levelRank(l string) int {
	switch l {
	case LevelCritical:
		return 0
	case LevelWarning:
		return 1
	default:
		return 2
	}
}

func flagList(flags []string) string {
	if len(flags) == 0 {
		return "none recorded"
	}
	return strings.Join(flags, "; ")
}

func ptr(v float64) *float64 { return &v }
