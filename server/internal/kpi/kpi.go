package kpi

import (
	"math"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

// PriorityStats summarises one triage priority.
type PriorityStats struct {
	Count       int     `json:"count"`
	AvgSLAHours float64 `json:"avg_sla_hours"`
}

// Summary holds the claims KPIs. Rates are percentages (0-100).
type Summary struct {
	TotalClaims          int                      `json:"total_claims_processed"`
	AvgProcessingMS      float64                  `json:"avg_processing_time_ms"`
	FraudReferralRate    float64                  `json:"fraud_referral_rate"`
	CoverageApprovalRate float64                  `json:"coverage_approval_rate"`
	TotalLossRate        float64                  `json:"total_loss_rate"`
	ManualOverrides      int                      `json:"manual_overrides"`
	SubrogationReferrals int                      `json:"subrogation_referrals"`
	TotalPayout          float64                  `json:"total_recommended_payout"`
	ByPriority           map[string]PriorityStats `json:"by_priority"`
	ByMode               map[string]int           `json:"by_mode"`
}

// Compute derives the KPIs from processed claims. A claim counts as a
// fraud referral when its fraud signal carries the SIU referral flag.
func Compute(records []*store.Record) Summary {
	s := Summary{
		ByPriority: make(map[string]PriorityStats),
		ByMode:     make(map[string]int),
	}
	if len(records) == 0 {
		return s
	}

	var (
		procMS   float64
		referred int
		approved int
		total    int
		slaSum   = make(map[string]int)
	)
	for _, r := range records {
		res := r.Result
		procMS += r.ProcessingMS
		if res.FraudSignal.SIUReferral {
			referred++
		}
		if res.Decision.Covered {
			approved++
		}
		if res.Decision.Outcome == types.OutcomeTotalLoss {
			total++
		}
		if r.Override != nil {
			s.ManualOverrides++
		}
		if res.Decision.Subrogation != nil && res.Decision.Subrogation.Recommended {
			s.SubrogationReferrals++
		}
		s.TotalPayout += res.Decision.RecommendedPayout

		p := res.Triage.Priority
		ps := s.ByPriority[p]
		ps.Count++
		s.ByPriority[p] = ps
		slaSum[p] += res.Triage.TargetSLAHours

		s.ByMode[string(res.Mode)]++
	}

	n := float64(len(records))
	s.TotalClaims = len(records)
	s.AvgProcessingMS = round2(procMS / n)
	s.FraudReferralRate = round2(float64(referred) / n * 100)
	s.CoverageApprovalRate = round2(float64(approved) / n * 100)
	s.TotalLossRate = round2(float64(total) / n * 100)
	s.TotalPayout = round2(s.TotalPayout)
	for p, ps := range s.ByPriority {
		ps.AvgSLAHours = round2(float64(slaSum[p]) / float64(ps.Count))
		s.ByPriority[p] = ps
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
