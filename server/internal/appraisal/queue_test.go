package appraisal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/rules"
)

func fieldClaim(id, priority string, acv float64) (*types.ClaimInfo, *types.Result) {
	c := &types.ClaimInfo{
		ClaimNumber:         id,
		PolicyNumber:        "POL-1",
		ClaimantName:        "Dana Lee",
		DateOfLoss:          "2024-05-06",
		LossDescription:     "Rolled over",
		EstimatedRepairCost: 14200,
		VehicleDetails:      "2016 Subaru Outback",
		ActualCashValue:     acv,
	}
	res := &types.Result{Triage: types.TriageDecision{Priority: priority, Assignment: rules.AssignField}}
	return c, res
}

func validInput(cost float64) AssessmentInput {
	return AssessmentInput{
		Appraiser:     "Mike Chen",
		PhotoCount:    4,
		DamageAreas:   []string{"Roof", "Front Bumper"},
		Complexity:    "extensive",
		EstimatedCost: cost,
	}
}

func TestEnqueueDedupes(t *testing.T) {
	q := New(nil, zaptest.NewLogger(t))
	c, res := fieldClaim("C-1", types.PriorityImmediate, 16000)

	in, ok := q.Enqueue(c, res)
	require.True(t, ok)
	assert.Equal(t, StatusPending, in.Status)
	assert.Equal(t, "2016 Subaru Outback", in.Vehicle)
	assert.Equal(t, rules.LossCollision, in.DamageType)

	again, ok := q.Enqueue(c, res)
	assert.False(t, ok)
	assert.Equal(t, in.ID, again.ID)
	assert.Len(t, q.Pending(), 1)

	// Completed claims are not queued again.
	_, err := q.Submit(in.ID, validInput(5000))
	require.NoError(t, err)
	_, ok = q.Enqueue(c, res)
	assert.False(t, ok)
	assert.Empty(t, q.Pending())
}

func TestPendingOrder(t *testing.T) {
	q := New(nil, zaptest.NewLogger(t))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, row := range []struct{ id, priority string }{
		{"C-1", types.PriorityStandard},
		{"C-2", types.PriorityImmediate},
		{"C-3", types.PriorityHigh},
		{"C-4", types.PriorityImmediate},
	} {
		q.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		c, res := fieldClaim(row.id, row.priority, 0)
		q.Enqueue(c, res)
	}
	var got []string
	for _, in := range q.Pending() {
		got = append(got, in.ClaimNumber)
	}
	assert.Equal(t, []string{"C-2", "C-4", "C-3", "C-1"}, got)
}

func TestAssign(t *testing.T) {
	q := New(nil, zaptest.NewLogger(t))
	c, res := fieldClaim("C-1", types.PriorityImmediate, 16000)
	in, _ := q.Enqueue(c, res)

	when := time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)
	got, err := q.Assign(in.ID, "Sarah Johnson", when)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Equal(t, when, *got.ScheduledFor)

	_, err = q.Assign("nope", "Sarah Johnson", when)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = q.Assign(in.ID, " ", when)
	assert.ErrorIs(t, err, ErrInvalidAssessment)
}

func TestSubmitValidation(t *testing.T) {
	q := New(nil, zaptest.NewLogger(t))
	c, res := fieldClaim("C-1", types.PriorityImmediate, 16000)
	in, _ := q.Enqueue(c, res)

	tests := []struct {
		name   string
		mutate func(*AssessmentInput)
	}{
		{"no photos", func(a *AssessmentInput) { a.PhotoCount = 0 }},
		{"no damage areas", func(a *AssessmentInput) { a.DamageAreas = nil }},
		{"blank damage area", func(a *AssessmentInput) { a.DamageAreas = []string{""} }},
		{"negative cost", func(a *AssessmentInput) { a.EstimatedCost = -1 }},
		{"unknown complexity", func(a *AssessmentInput) { a.Complexity = "Catastrophic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validInput(1000)
			tt.mutate(&a)
			_, err := q.Submit(in.ID, a)
			assert.ErrorIs(t, err, ErrInvalidAssessment)
		})
	}
	assert.Len(t, q.Pending(), 1)

	_, err := q.Submit("nope", validInput(1000))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitAssessment(t *testing.T) {
	q := New(nil, zaptest.NewLogger(t))

	// Claim ACV 16,000: 12,000 is exactly 75%.
	c, res := fieldClaim("C-1", types.PriorityImmediate, 16000)
	in, _ := q.Enqueue(c, res)
	_, _ = q.Assign(in.ID, "Sarah Johnson", time.Now())
	a := validInput(12000)
	a.Appraiser = ""
	rep, err := q.Submit(in.ID, a)
	require.NoError(t, err)
	assert.Equal(t, rules.RecommendTotalLoss, rep.Result.Recommendation)
	assert.Equal(t, 12000.0, rep.Result.Threshold)
	assert.Equal(t, "Sarah Johnson", rep.Assessment.Appraiser)
	assert.Equal(t, "Extensive", rep.Assessment.Complexity)
	assert.Equal(t, StatusCompleted, rep.Status)

	// Submitted value wins over the claim ACV.
	c, res = fieldClaim("C-2", types.PriorityHigh, 16000)
	in, _ = q.Enqueue(c, res)
	a = validInput(12000)
	a.VehicleValue = 40000
	rep, err = q.Submit(in.ID, a)
	require.NoError(t, err)
	assert.Equal(t, rules.RecommendRepair, rep.Result.Recommendation)

	// No value anywhere: the configured default applies.
	c, res = fieldClaim("C-3", types.PriorityHigh, 0)
	in, _ = q.Enqueue(c, res)
	rep, err = q.Submit(in.ID, validInput(3000))
	require.NoError(t, err)
	assert.Equal(t, rules.Default().Config().DefaultVehicleValue, rep.Result.VehicleValue)

	done := q.Completed()
	require.Len(t, done, 3)
	assert.Equal(t, "C-3", done[0].ClaimNumber)

	s := q.Summary()
	assert.Equal(t, 3, s.Completed)
	assert.Zero(t, s.Pending)
	assert.Equal(t, 1, s.TotalLosses)
	assert.InDelta(t, 33.33, s.TotalLossRate, 0.01)
	assert.InDelta(t, 9000, s.AvgCost, 0.001)
}

func TestSetRules(t *testing.T) {
	q := New(nil, zaptest.NewLogger(t))
	cfg := rules.Default().Config()
	cfg.TotalLossRatio = 0.5
	q.SetRules(rules.New(cfg))

	c, res := fieldClaim("C-1", types.PriorityHigh, 10000)
	in, _ := q.Enqueue(c, res)
	rep, err := q.Submit(in.ID, validInput(6000))
	require.NoError(t, err)
	assert.Equal(t, rules.RecommendTotalLoss, rep.Result.Recommendation)
}

func TestEmptySummary(t *testing.T) {
	assert.Equal(t, Summary{}, New(nil, nil).Summary())
}

func TestConcurrentQueue(t *testing.T) {
	q := New(nil, zaptest.NewLogger(t))
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, res := fieldClaim(string(rune('A'+i)), types.PriorityHigh, 20000)
			in, ok := q.Enqueue(c, res)
			if ok {
				_, _ = q.Submit(in.ID, validInput(1000))
			}
			q.Pending()
			q.Summary()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, q.Summary().Completed)
}
