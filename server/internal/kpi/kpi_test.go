package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

func record(priority string, sla int, outcome types.Outcome, payout float64, siu bool, ms float64) *store.Record {
	return &store.Record{
		ProcessingMS: ms,
		Result: &types.Result{
			Mode: types.ModeFallback,
			Decision: types.ClaimDecision{
				Covered:           outcome != types.OutcomeDeny,
				Outcome:           outcome,
				RecommendedPayout: payout,
			},
			Triage:      types.TriageDecision{Priority: priority, TargetSLAHours: sla},
			FraudSignal: types.FraudSignal{SIUReferral: siu},
		},
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil)
	assert.Zero(t, s.TotalClaims)
	assert.Zero(t, s.CoverageApprovalRate)
	assert.NotNil(t, s.ByPriority)
}

func TestCompute(t *testing.T) {
	withSubro := record(types.PriorityStandard, 24, types.OutcomeApprove, 6000, false, 10)
	withSubro.Result.Decision.Subrogation = &types.Subrogation{Recommended: true, Reason: "r"}
	overridden := record(types.PriorityImmediate, 8, types.OutcomeDeny, 0, true, 30)
	overridden.Override = &store.Override{Action: store.ActionDeny}
	llm := record(types.PriorityStandard, 12, types.OutcomeApprove, 1000, false, 20)
	llm.Result.Mode = types.ModeLLM

	s := Compute([]*store.Record{
		withSubro,
		overridden,
		record(types.PriorityImmediate, 8, types.OutcomeTotalLoss, 15000, false, 40),
		llm,
	})

	assert.Equal(t, 4, s.TotalClaims)
	assert.Equal(t, 25.0, s.AvgProcessingMS)
	assert.Equal(t, 25.0, s.FraudReferralRate)
	assert.Equal(t, 75.0, s.CoverageApprovalRate)
	assert.Equal(t, 25.0, s.TotalLossRate)
	assert.Equal(t, 1, s.ManualOverrides)
	assert.Equal(t, 1, s.SubrogationReferrals)
	assert.Equal(t, 22000.0, s.TotalPayout)
	assert.Equal(t, PriorityStats{Count: 2, AvgSLAHours: 18}, s.ByPriority[types.PriorityStandard])
	assert.Equal(t, PriorityStats{Count: 2, AvgSLAHours: 8}, s.ByPriority[types.PriorityImmediate])
	assert.Equal(t, map[string]int{"fallback": 3, "llm": 1}, s.ByMode)
}

func TestComputeRounding(t *testing.T) {
	s := Compute([]*store.Record{
		record(types.PriorityLow, 24, types.OutcomeApprove, 1, false, 1),
		record(types.PriorityLow, 24, types.OutcomeDeny, 0, false, 1),
		record(types.PriorityLow, 24, types.OutcomeDeny, 0, false, 2),
	})
	assert.Equal(t, 33.33, s.CoverageApprovalRate)
	assert.Equal(t, 1.33, s.AvgProcessingMS)
}
