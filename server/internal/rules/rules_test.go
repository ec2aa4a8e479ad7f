package rules

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimdesk/claimdesk/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func baseClaim() *types.ClaimInfo {
	return &types.ClaimInfo{
		ClaimNumber:         "CLM-T1",
		PolicyNumber:        "POL-T1",
		ClaimantName:        "Pat Doe",
		DateOfLoss:          "2024-05-01",
		LossDescription:     "Hit a guardrail on the freeway",
		EstimatedRepairCost: 3000,
		VehicleUse:          "personal",
	}
}

func approveRec(amount float64) types.PolicyRecommendation {
	return types.PolicyRecommendation{
		PolicySection:         "Part D - Collision Coverage",
		RecommendationSummary: "The loss is covered; pay the repair.",
		Deductible:            ptr(500.0),
		SettlementAmount:      ptr(amount),
	}
}

func TestIsCommercialUse(t *testing.T) {
	r := Default()
	tests := []struct {
		name string
		use  string
		desc string
		want bool
	}{
		{"personal", "personal", "Rear-ended at a light", false},
		{"delivery use", "food delivery", "Rear-ended", true},
		{"rideshare in description", "", "Was driving for Lyft when hit", true},
		{"case insensitive", "DoorDash", "", true},
		{"empty", "", "Hail damage", false},
		{"use field decides over description", "personal", "Was driving for Lyft when hit", false},
		{"negated with hyphen", "non-commercial", "Hit a guardrail on the freeway", false},
		{"negated with not", "personal, not for hire", "", false},
		{"keyword inside another word", "superuber", "", false},
		{"plural", "", "Stopped between deliveries for the courier app", true},
		{"multi-word keyword", "", "Car was for hire at the time", true},
		{"other vehicle by", "", "Rear-ended at a light by a delivery truck", false},
		{"other vehicle driver", "", "Struck by an Uber driver who ran a stop sign", false},
		{"other vehicle with", "", "Collided with a commercial van on the highway", false},
		{"own delivery after other party", "", "Hit by a sedan while driving for DoorDash", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseClaim()
			c.VehicleUse = tt.use
			c.LossDescription = tt.desc
			assert.Equal(t, tt.want, r.IsCommercialUse(c))
		})
	}
}

func TestHasCommercialEndorsement(t *testing.T) {
	r := Default()
	c := baseClaim()

	assert.False(t, r.HasCommercialEndorsement(c, nil))
	assert.True(t, r.HasCommercialEndorsement(c, &types.Declaration{Endorsements: []string{"Rideshare endorsement (TNC)"}}))
	assert.False(t, r.HasCommercialEndorsement(c, &types.Declaration{Endorsements: []string{"Roadside assistance"}}))

	c.CommercialEndorsement = ptr(false)
	assert.False(t, r.HasCommercialEndorsement(c, &types.Declaration{Endorsements: []string{"Commercial use"}}))
}

func TestDeductible(t *testing.T) {
	r := Default()
	c := baseClaim()
	assert.Equal(t, 500.0, r.Deductible(c, nil))
	assert.Equal(t, 1000.0, r.Deductible(c, &types.Declaration{CollisionDeductible: 1000}))

	c.LossDescription = "Car was keyed in a parking garage"
	assert.Equal(t, LossComprehensive, r.LossType(c))
	assert.Equal(t, 250.0, r.Deductible(c, nil))
	assert.Equal(t, 100.0, r.Deductible(c, &types.Declaration{ComprehensiveDeductible: 100}))

	c.Deductible = ptr(0.0)
	assert.Equal(t, 0.0, r.Deductible(c, &types.Declaration{ComprehensiveDeductible: 100}))
}

func TestLossType_ExplicitWins(t *testing.T) {
	r := Default()
	c := baseClaim()
	c.LossDescription = "Hail dented the hood"
	c.LossType = "Collision"
	assert.Equal(t, LossCollision, r.LossType(c))
	c.LossType = "comprehensive - glass"
	assert.Equal(t, LossComprehensive, r.LossType(c))
}

func TestIsTotalLoss(t *testing.T) {
	r := Default()
	c := baseClaim()
	assert.False(t, r.IsTotalLoss(c), "no ACV means no total-loss check")

	c.ActualCashValue = 10000
	c.EstimatedRepairCost = 7499
	assert.False(t, r.IsTotalLoss(c))
	c.EstimatedRepairCost = 7500
	assert.True(t, r.IsTotalLoss(c))
}

// Commercial use without endorsement is always denied, whatever the
// recommendation says and whatever the damage.
func TestGuard_CommercialUseAlwaysDenied(t *testing.T) {
	r := Default()
	rng := rand.New(rand.NewSource(7))
	uses := []string{"pizza delivery", "Uber", "rideshare driver", "courier", "Instacart shopping"}

	for i := 0; i < 500; i++ {
		c := baseClaim()
		c.VehicleUse = uses[i%len(uses)]
		c.EstimatedRepairCost = float64(rng.Intn(40000))
		if rng.Intn(2) == 0 {
			c.ActualCashValue = float64(1000 + rng.Intn(40000))
		}
		c.FaultPercentage = ptr(0.0)
		c.OtherParty = &types.OtherParty{Name: "X", Insurer: "Y"}

		d, rationale := r.Guard(c, nil, approveRec(c.EstimatedRepairCost))
		require.Equal(t, types.OutcomeDeny, d.Outcome, "claim %+v", c)
		assert.False(t, d.Covered)
		assert.Zero(t, d.RecommendedPayout)
		assert.Nil(t, d.Subrogation)
		assert.Equal(t, SectionCommercialExclusion, d.PolicySection)
		assert.Contains(t, rationale, "commercial")
	}
}

func TestGuard_PersonalUseIsNotDeniedAsCommercial(t *testing.T) {
	r := Default()
	tests := []struct {
		use  string
		desc string
	}{
		{"non-commercial", "Hit a guardrail on the freeway"},
		{"personal", "Rear-ended at a light by a delivery truck"},
		{"personal", "Struck by an Uber driver who ran a stop sign"},
		{"personal", "Sideswiped by a commercial van on the highway"},
		{"", "Rear-ended at a light by a delivery truck"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c := baseClaim()
			c.VehicleUse = tt.use
			c.LossDescription = tt.desc

			d, _ := r.Guard(c, nil, r.Coverage(c, nil))
			assert.Equal(t, types.OutcomeApprove, d.Outcome)
			assert.NotEqual(t, SectionCommercialExclusion, d.PolicySection)
			assert.Equal(t, 2500.0, d.RecommendedPayout)
		})
	}
}

func TestGuard_CommercialWithEndorsementIsNotDenied(t *testing.T) {
	r := Default()
	c := baseClaim()
	c.VehicleUse = "rideshare (Uber)"
	decl := &types.Declaration{Endorsements: []string{"Rideshare endorsement"}}

	d, _ := r.Guard(c, decl, r.Coverage(c, decl))
	assert.Equal(t, types.OutcomeApprove, d.Outcome)
	assert.Equal(t, 2500.0, d.RecommendedPayout)
}

func TestGuard_TotalLoss(t *testing.T) {
	r := Default()
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 500; i++ {
		c := baseClaim()
		c.ActualCashValue = float64(2000 + rng.Intn(60000))
		ratio := 0.75 + rng.Float64()*0.75
		c.EstimatedRepairCost = c.ActualCashValue * ratio
		if c.EstimatedRepairCost/c.ActualCashValue < 0.75 {
			continue
		}

		// Even a recommendation to deny cannot override a total loss.
		rec := types.PolicyRecommendation{PolicySection: "x", RecommendationSummary: "Deny: not covered."}
		d, _ := r.Guard(c, nil, rec)
		require.Equal(t, types.OutcomeTotalLoss, d.Outcome, "claim %+v", c)
		assert.True(t, d.Covered)
		assert.InDelta(t, c.ActualCashValue-d.Deductible, d.RecommendedPayout, 1e-9)
	}
}

func TestGuard_TotalLossPayoutNeverNegative(t *testing.T) {
	r := Default()
	c := baseClaim()
	c.ActualCashValue = 400
	c.EstimatedRepairCost = 390

	d, _ := r.Guard(c, nil, r.Coverage(c, nil))
	assert.Equal(t, types.OutcomeTotalLoss, d.Outcome)
	assert.Zero(t, d.RecommendedPayout)
}

func TestGuard_CollisionLimit(t *testing.T) {
	r := Default()
	c := baseClaim()
	c.EstimatedRepairCost = 18000

	d, rationale := r.Guard(c, nil, approveRec(17500))
	assert.Equal(t, types.OutcomeDeny, d.Outcome)
	assert.Equal(t, SectionLimits, d.PolicySection)
	assert.Contains(t, rationale, "collision limit")

	// A higher limit on the declarations page lets the same claim through.
	d, _ = r.Guard(c, &types.Declaration{CollisionLimit: 50000}, approveRec(17500))
	assert.Equal(t, types.OutcomeApprove, d.Outcome)
}

func TestGuard_Subrogation(t *testing.T) {
	r := Default()
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 500; i++ {
		c := baseClaim()
		c.FaultPercentage = ptr(0.0)
		c.OtherParty = &types.OtherParty{Name: "Other Driver", Insurer: "Acme Mutual"}
		c.EstimatedRepairCost = 3001 + float64(rng.Intn(11000))
		payout := c.EstimatedRepairCost - 500

		d, _ := r.Guard(c, nil, approveRec(payout))
		require.Equal(t, types.OutcomeApprove, d.Outcome)
		require.Greater(t, d.RecommendedPayout, 2500.0)
		require.NotNil(t, d.Subrogation, "claim %+v", c)
		assert.True(t, d.Subrogation.Recommended)
		assert.Equal(t, "Acme Mutual", d.Subrogation.Target)
	}
}

func TestSubrogation_Conditions(t *testing.T) {
	r := Default()
	qualifying := func() *types.ClaimInfo {
		c := baseClaim()
		c.FaultPercentage = ptr(0.0)
		c.OtherParty = &types.OtherParty{Name: "Other", Insurer: "Acme"}
		return c
	}

	assert.NotNil(t, r.Subrogation(qualifying(), 2500.01))
	assert.Nil(t, r.Subrogation(qualifying(), 2500), "payout must exceed the minimum")

	c := qualifying()
	c.FaultPercentage = ptr(20.0)
	assert.Nil(t, r.Subrogation(c, 5000))

	c = qualifying()
	c.FaultPercentage = nil
	assert.Nil(t, r.Subrogation(c, 5000), "unknown fault is not zero fault")

	c = qualifying()
	c.OtherParty.Insurer = ""
	assert.Nil(t, r.Subrogation(c, 5000))

	c = qualifying()
	c.OtherParty = &types.OtherParty{Insurer: "Acme"}
	assert.Nil(t, r.Subrogation(c, 5000))

	c = qualifying()
	c.OtherParty.AtFault = ptr(false)
	assert.Nil(t, r.Subrogation(c, 5000))

	c = qualifying()
	c.OtherParty = &types.OtherParty{PolicyNumber: "ACM-9", Insurer: "Acme"}
	s := r.Subrogation(c, 5000)
	require.NotNil(t, s)
	assert.Contains(t, s.Reason, "policy ACM-9")
}

func TestGuard_RecommendationDeny(t *testing.T) {
	r := Default()
	c := baseClaim()
	rec := types.PolicyRecommendation{PolicySection: "Exclusions", RecommendationSummary: "Wear and tear is not covered."}

	d, rationale := r.Guard(c, nil, rec)
	assert.Equal(t, types.OutcomeDeny, d.Outcome)
	assert.Zero(t, d.RecommendedPayout)
	assert.Equal(t, "Wear and tear is not covered.", rationale)
}

func TestGuard_SettlementCappedAtRepairLessDeductible(t *testing.T) {
	r := Default()
	c := baseClaim()

	d, rationale := r.Guard(c, nil, approveRec(9000))
	assert.Equal(t, types.OutcomeApprove, d.Outcome)
	assert.Equal(t, 2500.0, d.RecommendedPayout)
	assert.Contains(t, rationale, "Settlement capped at $2,500.00")

	d, rationale = r.Guard(c, nil, approveRec(1800))
	assert.Equal(t, 1800.0, d.RecommendedPayout)
	assert.NotContains(t, rationale, "capped")

	c.EstimatedRepairCost = 300
	d, _ = r.Guard(c, nil, approveRec(300))
	assert.Zero(t, d.RecommendedPayout)
}

func TestCoverage_AgreesWithGuard(t *testing.T) {
	r := Default()
	claims := []*types.ClaimInfo{baseClaim()}

	c := baseClaim()
	c.VehicleUse = "delivery"
	claims = append(claims, c)

	c = baseClaim()
	c.ActualCashValue = 10000
	c.EstimatedRepairCost = 9000
	claims = append(claims, c)

	c = baseClaim()
	c.EstimatedRepairCost = 16000
	claims = append(claims, c)

	for _, c := range claims {
		rec := r.Coverage(c, nil)
		d, rationale := r.Guard(c, nil, rec)
		assert.Equal(t, rec.RecommendationSummary, rationale, "claim %+v", c)
		assert.Equal(t, rec.PolicySection, d.PolicySection)
		assert.Equal(t, *rec.SettlementAmount, d.RecommendedPayout)
	}
}

func TestCoverage_RepairSummary(t *testing.T) {
	r := Default()
	rec := r.Coverage(baseClaim(), nil)
	assert.Equal(t, SectionCollision, rec.PolicySection)
	assert.Equal(t, "Claim CLM-T1 on policy POL-T1 for $3,000.00 is covered under Part D - Collision. Recommend paying $2,500.00 after the $500.00 deductible.",
		rec.RecommendationSummary)
}

func TestFraud(t *testing.T) {
	r := Default()

	sig := r.Fraud(baseClaim())
	assert.Equal(t, 0.2, sig.RiskScore)
	assert.Empty(t, sig.Flags)
	assert.False(t, sig.SIUReferral)
	assert.Equal(t, RecommendNoSIU, sig.Recommendation)

	c := baseClaim()
	c.LossDescription = "Rear-ended while on a pizza delivery run"
	c.EstimatedRepairCost = 16000
	c.ReportDate = "2024-05-06"
	sig = r.Fraud(c)
	assert.Equal(t, 0.8, sig.RiskScore)
	assert.Equal(t, []string{FlagCommercialUse, FlagHighEstimate, FlagLateReport}, sig.Flags)
	assert.True(t, sig.SIUReferral)
	assert.Equal(t, RecommendSIUDesk, sig.Recommendation)
}

func TestFraud_HighEstimateAgainstACV(t *testing.T) {
	r := Default()
	c := baseClaim()
	c.ActualCashValue = 2000
	c.EstimatedRepairCost = 2500
	assert.Equal(t, 1.0, r.Factors(c).HighEstimate)
}

func TestReportDelay(t *testing.T) {
	c := baseClaim()
	_, ok := ReportDelay(c)
	assert.False(t, ok)

	c.ReportDate = "2024-05-02T12:00:00Z"
	c.DateOfLoss = "2024-05-01T00:00:00Z"
	h, ok := ReportDelay(c)
	require.True(t, ok)
	assert.Equal(t, 36.0, h)

	c.ReportDate = "sometime"
	_, ok = ReportDelay(c)
	assert.False(t, ok)
}

func TestFNOL(t *testing.T) {
	r := Default()
	c := baseClaim()
	f := r.FNOL(c)
	assert.Equal(t, "Collision reported for Pat Doe on 2024-05-01.", f.IncidentSummary)
	assert.Equal(t, "Vehicle damage estimated at $3,000.00 with description: Hit a guardrail on the freeway.", f.ImpactAssessment)
	assert.Equal(t, types.SeverityMedium, f.SeverityLevel)
	assert.Equal(t, []string{ActionVerifyCoverage, ActionCollectEstimate, ActionExpressSettle}, f.RecommendedActions)

	c.EstimatedRepairCost = 12000
	c.InjuriesReported = true
	f = r.FNOL(c)
	assert.Equal(t, types.SeverityHigh, f.SeverityLevel)
	assert.Contains(t, f.RecommendedActions, ActionInspection)
	assert.Contains(t, f.RecommendedActions, ActionInjuryExposure)
}

func TestTriage(t *testing.T) {
	r := Default()
	c := baseClaim()
	tr := r.Triage(c)
	assert.Equal(t, types.PriorityStandard, tr.Priority)
	assert.Equal(t, AssignDesk, tr.Assignment)
	assert.Equal(t, 24, tr.TargetSLAHours)

	c.InjuriesReported = true
	assert.Equal(t, types.PriorityHigh, r.Triage(c).Priority)

	c.EstimatedRepairCost = 10000
	tr = r.Triage(c)
	assert.Equal(t, types.PriorityImmediate, tr.Priority)
	assert.Equal(t, AssignField, tr.Assignment)
	assert.Equal(t, 8, tr.TargetSLAHours)
	assert.True(t, tr.FieldAssignment())
}

func TestQueries(t *testing.T) {
	r := Default()
	c := baseClaim()
	q := r.Queries(c)
	require.Len(t, q.Queries, 5)
	assert.Equal(t, "Coverage conditions for POL-T1", q.Queries[0])
	assert.Equal(t, "Policy limits and coverage details", q.Queries[4])
	assert.NoError(t, types.Validate(&q))

	c.VehicleUse = "delivery"
	assert.Contains(t, r.Queries(c).Queries[4], "Commercial use")
}

func TestAssess(t *testing.T) {
	r := Default()
	a := r.Assess(11250, 0)
	assert.Equal(t, RecommendTotalLoss, a.Recommendation)
	assert.Equal(t, 15000.0, a.VehicleValue)
	assert.Equal(t, 11250.0, a.Threshold)

	a = r.Assess(4000, 20000)
	assert.Equal(t, RecommendRepair, a.Recommendation)
	assert.Equal(t, 0.2, a.Ratio)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", Money(1234.5))
	assert.Equal(t, "$0.00", Money(0))
	assert.Equal(t, "-$12.00", Money(-12))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Pay $500, then close.", Sanitize("  Pay  $ 500 ,\n then   close . "))
	assert.Equal(t, "", Sanitize(""))
}

func TestNew_KeepsDefaultKeywords(t *testing.T) {
	cfg := Default().Config()
	cfg.CommercialKeywords = nil
	r := New(cfg)
	assert.NotEmpty(t, r.Config().CommercialKeywords)
}
