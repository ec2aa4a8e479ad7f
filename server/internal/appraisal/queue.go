package appraisal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/rules"
)

var (
	// ErrNotFound is returned for an unknown inspection ID.
	ErrNotFound = errors.New("inspection not found")

	// ErrInvalidAssessment wraps validation failures of a submitted assessment.
	ErrInvalidAssessment = errors.New("invalid assessment")
)

// Inspection statuses.
const (
	StatusPending   = "Pending"
	StatusScheduled = "Scheduled"
	StatusCompleted = "Completed"
)

// Repair complexities an appraiser can record.
var Complexities = []string{"Minor", "Moderate", "Extensive", "Total Loss"}

// Inspection is a pending physical appraisal.
type Inspection struct {
	ID                  string     `json:"id"`
	ClaimNumber         string     `json:"claim_number"`
	Claimant            string     `json:"claimant"`
	Vehicle             string     `json:"vehicle"`
	DamageType          string     `json:"damage_type"`
	Priority            string     `json:"priority"`
	Status              string     `json:"status"`
	EstimatedRepairCost float64    `json:"estimated_repair_cost"`
	VehicleValue        float64    `json:"vehicle_value,omitempty"`
	Appraiser           string     `json:"appraiser,omitempty"`
	ScheduledFor        *time.Time `json:"scheduled_for,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// AssessmentInput is what an appraiser submits after inspecting a vehicle.
type AssessmentInput struct {
	Appraiser     string   `json:"appraiser"`
	PhotoCount    int      `json:"photo_count" validate:"gte=1"`
	DamageAreas   []string `json:"damage_areas" validate:"min=1,dive,required"`
	Complexity    string   `json:"repair_complexity"`
	EstimatedCost float64  `json:"estimated_cost" validate:"gte=0"`
	VehicleValue  float64  `json:"vehicle_value" validate:"gte=0"`
	PreExisting   bool     `json:"pre_existing"`
	Notes         string   `json:"notes,omitempty"`
}

// Report is a completed inspection.
type Report struct {
	Inspection
	Assessment  AssessmentInput  `json:"assessment"`
	Result      rules.Assessment `json:"result"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Summary aggregates completed inspections.
type Summary struct {
	Pending       int     `json:"pending"`
	Completed     int     `json:"completed"`
	TotalLosses   int     `json:"total_losses"`
	TotalLossRate float64 `json:"total_loss_rate"`
	AvgCost       float64 `json:"avg_estimated_cost"`
}

// Queue holds pending and completed inspections. It is safe for concurrent
// use.
type Queue struct {
	mu        sync.RWMutex
	pending   map[string]*Inspection
	byClaim   map[string]string // claim number -> inspection ID, pending or done
	completed []*Report

	rules atomic.Pointer[rules.Rules]
	log   *zap.Logger
	now   func() time.Time
}

// New returns an empty Queue. A nil r uses the default rules.
func New(r *rules.Rules, log *zap.Logger) *Queue {
	if r == nil {
		r = rules.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	q := &Queue{
		pending: make(map[string]*Inspection),
		byClaim: make(map[string]string),
		log:     log,
		now:     time.Now,
	}
	q.rules.Store(r)
	return q
}

// SetRules swaps the rules used to assess submissions.
func (q *Queue) SetRules(r *rules.Rules) {
	if r != nil {
		q.rules.Store(r)
	}
}

// Enqueue adds an inspection for the claim. It returns false when the claim
// already has one, pending or completed.
func (q *Queue) Enqueue(c *types.ClaimInfo, res *types.Result) (Inspection, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id, ok := q.byClaim[c.ClaimNumber]; ok {
		if in, ok := q.pending[id]; ok {
			return *in, false
		}
		return Inspection{}, false
	}

	vehicle := c.VehicleDetails
	if vehicle == "" {
		vehicle = "Unknown vehicle"
	}
	in := &Inspection{
		ID:                  uuid.NewString(),
		ClaimNumber:         c.ClaimNumber,
		Claimant:            c.ClaimantName,
		Vehicle:             vehicle,
		DamageType:          q.rules.Load().LossType(c),
		Priority:            res.Triage.Priority,
		Status:              StatusPending,
		EstimatedRepairCost: c.EstimatedRepairCost,
		VehicleValue:        c.ActualCashValue,
		CreatedAt:           q.now(),
	}
	q.pending[in.ID] = in
	q.byClaim[c.ClaimNumber] = in.ID

	q.log.Info("inspection queued",
		zap.String("id", in.ID),
		zap.String("claim", c.ClaimNumber),
		zap.String("priority", in.Priority),
	)
	return *in, true
}

// Get returns a pending inspection.
func (q *Queue) Get(id string) (Inspection, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	in, ok := q.pending[id]
	if !ok {
		return Inspection{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *in, nil
}

// Assign schedules an inspection with an appraiser.
func (q *Queue) Assign(id, appraiser string, date time.Time) (Inspection, error) {
	if strings.TrimSpace(appraiser) == "" {
		return Inspection{}, fmt.Errorf("%w: appraiser is required", ErrInvalidAssessment)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	in, ok := q.pending[id]
	if !ok {
		return Inspection{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	in.Appraiser = appraiser
	in.ScheduledFor = &date
	in.Status = StatusScheduled
	return *in, nil
}

// Submit completes an inspection with the appraiser's assessment. At least
// one photo and one damaged area are required. The repair-versus-total-loss
// call uses the submitted vehicle value, then the claim's ACV, then the
// configured default.
func (q *Queue) Submit(id string, a AssessmentInput) (Report, error) {
	if err := validateAssessment(&a); err != nil {
		return Report{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	in, ok := q.pending[id]
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	value := a.VehicleValue
	if value <= 0 {
		value = in.VehicleValue
	}
	if a.Appraiser == "" {
		a.Appraiser = in.Appraiser
	}
	done := *in
	done.Status = StatusCompleted
	rep := &Report{
		Inspection:  done,
		Assessment:  a,
		Result:      q.rules.Load().Assess(a.EstimatedCost, value),
		CompletedAt: q.now(),
	}
	delete(q.pending, id)
	q.completed = append(q.completed, rep)

	q.log.Info("inspection completed",
		zap.String("id", id),
		zap.String("claim", in.ClaimNumber),
		zap.String("recommendation", rep.Result.Recommendation),
	)
	return *rep, nil
}

// Pending returns pending and scheduled inspections, most urgent first.
func (q *Queue) Pending() []Inspection {
	q.mu.RLock()
	out := make([]Inspection, 0, len(q.pending))
	for _, in := range q.pending {
		out = append(out, *in)
	}
	q.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		ri, rj := types.PriorityRank(out[i].Priority), types.PriorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ClaimNumber < out[j].ClaimNumber
	})
	return out
}

// Completed returns completed inspections, newest first.
func (q *Queue) Completed() []Report {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Report, len(q.completed))
	for i, r := range q.completed {
		out[len(out)-1-i] = *r
	}
	return out
}

// Summary aggregates the queue.
func (q *Queue) Summary() Summary {
	q.mu.RLock()
	defer q.mu.RUnlock()
	s := Summary{Pending: len(q.pending), Completed: len(q.completed)}
	if s.Completed == 0 {
		return s
	}
	var cost float64
	for _, r := range q.completed {
		cost += r.Assessment.EstimatedCost
		if r.Result.Recommendation == rules.RecommendTotalLoss {
			s.TotalLosses++
		}
	}
	s.TotalLossRate = float64(s.TotalLosses) / float64(s.Completed) * 100
	s.AvgCost = cost / float64(s.Completed)
	return s
}

func validateAssessment(a *AssessmentInput) error {
	if err := types.Validate(a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssessment, err)
	}
	if a.Complexity == "" {
		return nil
	}
	for _, c := range Complexities {
		if strings.EqualFold(a.Complexity, c) {
			a.Complexity = c
			return nil
		}
	}
	return fmt.Errorf("%w: repair_complexity %q is not one of %s",
		ErrInvalidAssessment, a.Complexity, strings.Join(Complexities, ", "))
}
