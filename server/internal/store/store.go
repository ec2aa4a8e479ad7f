package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/pkg/types"
)

var (
	// ErrReasonRequired is returned when an override that changes the
	// decision carries no reason.
	ErrReasonRequired = errors.New("override reason is required")

	// ErrInvalidAction is returned for an unknown override action.
	ErrInvalidAction = errors.New("invalid override action")
)

// Override actions.
const (
	ActionApprove = "approve" // accept the pipeline decision as is
	ActionCover   = "cover"
	ActionDeny    = "deny"
)

// SectionAdjusterOverride is cited when an adjuster covers a claim the
// pipeline denied.
const SectionAdjusterOverride = "Adjuster override"

// Override is an adjuster's review of a pipeline decision.
type Override struct {
	ID       string              `json:"id"`
	Action   string              `json:"action"`
	Reason   string              `json:"reason,omitempty"`
	Adjuster string              `json:"adjuster,omitempty"`
	At       time.Time           `json:"at"`
	Original types.ClaimDecision `json:"original_decision"`
}

// OverrideRequest is the input to Store.Override.
type OverrideRequest struct {
	Action   string   `json:"action"`
	Reason   string   `json:"reason"`
	Adjuster string   `json:"adjuster"`
	Payout   *float64 `json:"payout,omitempty"`
}

// Record is a processed claim. Records are immutable once stored; updates
// replace the record.
type Record struct {
	ClaimNumber  string           `json:"claim_number"`
	Claim        *types.ClaimInfo `json:"claim"`
	Result       *types.Result    `json:"result"`
	ProcessingMS float64          `json:"processing_time_ms"`
	ProcessedAt  time.Time        `json:"processed_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Override     *Override        `json:"override,omitempty"`
}

// Store is a thread-safe in-memory record store keyed by claim number.
// A background goroutine (Run) evicts records older than the retention.
// A zero retention keeps records forever.
type Store struct {
	mu        sync.RWMutex
	data      map[string]*Record
	retention time.Duration
	now       func() time.Time // injectable for deterministic tests
	log       *zap.Logger
}

// New creates a Store with the given retention.
func New(retention time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		data:      make(map[string]*Record),
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

// Put stores or replaces the record for the claim. Callers must not modify
// c or res afterwards.
func (s *Store) Put(c *types.ClaimInfo, res *types.Result, elapsed time.Duration) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rec := &Record{
		ClaimNumber:  c.ClaimNumber,
		Claim:        c,
		Result:       res,
		ProcessingMS: float64(elapsed.Microseconds()) / 1000,
		ProcessedAt:  now,
		UpdatedAt:    now,
	}
	s.data[c.ClaimNumber] = rec
	return rec
}

// Get returns the record for claimNumber.
func (s *Store) Get(claimNumber string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[claimNumber]
	return r, ok
}

// Count returns the number of records held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// All returns every record, newest first.
func (s *Store) All() []*Record {
	s.mu.RLock()
	out := make([]*Record, 0, len(s.data))
	for _, r := range s.data {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sortRecords(out, SortNewest)
	return out
}

// Sort orders for List.
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortAmount   = "amount"
	SortPriority = "priority"
)

// Query filters and pages List.
type Query struct {
	// Priorities keeps records whose triage priority is listed. Empty keeps all.
	Priorities []string
	// Covered keeps covered (true) or denied (false) claims. Nil keeps all.
	Covered *bool
	Sort    string
	Limit   int
	Offset  int
}

// List returns the page of records matching q and the total number of
// matches before paging.
func (s *Store) List(q Query) ([]*Record, int) {
	all := s.All()
	matched := all[:0]
	for _, r := range all {
		if !matches(r, q) {
			continue
		}
		matched = append(matched, r)
	}
	sortRecords(matched, q.Sort)

	total := len(matched)
	if q.Offset >= total {
		return []*Record{}, total
	}
	if q.Offset > 0 {
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total
}

// Override applies an adjuster review to the claim's decision. Changing the
// decision requires a reason. The original pipeline decision is kept across
// repeated overrides.
func (s *Store) Override(claimNumber string, req OverrideRequest) (*Record, error) {
	action := strings.ToLower(strings.TrimSpace(req.Action))
	switch action {
	case ActionApprove, ActionCover, ActionDeny:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if action != ActionApprove && strings.TrimSpace(req.Reason) == "" {
		return nil, ErrReasonRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.data[claimNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrClaimNotFound, claimNumber)
	}

	original := old.Result.Decision
	if old.Override != nil {
		original = old.Override.Original
	}

	res := *old.Result
	d := res.Decision
	switch action {
	case ActionCover:
		if d.Outcome == types.OutcomeDeny && original.Outcome != types.OutcomeDeny {
			// Reverses an earlier deny override: the pipeline settlement
			// stands, total-loss payouts included.
			d = original
		}
		d.Covered = true
		if d.Outcome == types.OutcomeDeny {
			d.Outcome = types.OutcomeApprove
			d.PolicySection = SectionAdjusterOverride
		}
		switch {
		case req.Payout != nil:
			d.RecommendedPayout = max(0, *req.Payout)
		case d.RecommendedPayout == 0:
			d.RecommendedPayout = max(0, old.Claim.EstimatedRepairCost-d.Deductible)
		}
		d.Overridden = true
	case ActionDeny:
		d.Covered = false
		d.Outcome = types.OutcomeDeny
		d.RecommendedPayout = 0
		d.Subrogation = nil
		d.Overridden = true
	}
	if action != ActionApprove {
		d.Notes = overrideNotes(original.Notes, action, req.Reason)
	}
	res.Decision = d

	now := s.now()
	rec := *old
	rec.Result = &res
	rec.UpdatedAt = now
	rec.Override = &Override{
		ID:       uuid.NewString(),
		Action:   action,
		Reason:   strings.TrimSpace(req.Reason),
		Adjuster: req.Adjuster,
		At:       now,
		Original: original,
	}
	s.data[claimNumber] = &rec

	s.log.Info("decision overridden",
		zap.String("claim", claimNumber),
		zap.String("action", action),
		zap.String("adjuster", req.Adjuster),
	)
	return &rec, nil
}

// overrideNotes appends the latest override to the pipeline notes. Earlier
// overrides are not repeated.
func overrideNotes(pipelineNotes, action, reason string) string {
	line := fmt.Sprintf("Adjuster override (%s): %s", action, strings.TrimSpace(reason))
	if pipelineNotes == "" {
		return line
	}
	return pipelineNotes + "\n" + line
}

// Evict removes records processed before now minus the retention. It
// returns the number removed.
func (s *Store) Evict(now time.Time) int {
	if s.retention <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.retention)
	removed := 0
	for id, r := range s.data {
		if !r.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background eviction loop. It ticks at half the retention
// (minimum 1 second) and blocks until ctx is cancelled. It returns at once
// when retention is disabled.
func (s *Store) Run(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	interval := s.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				s.log.Debug("evicted expired claims", zap.Int("count", n))
			}
		}
	}
}

// --- helpers ---

func matches(r *Record, q Query) bool {
	if len(q.Priorities) > 0 {
		found := false
		for _, p := range q.Priorities {
			if strings.EqualFold(p, r.Result.Triage.Priority) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Covered != nil && *q.Covered != r.Result.Decision.Covered {
		return false
	}
	return true
}

func sortRecords(rs []*Record, order string) {
	var less func(a, b *Record) bool
	switch order {
	case SortOldest:
		less = func(a, b *Record) bool { return a.ProcessedAt.Before(b.ProcessedAt) }
	case SortAmount:
		less = func(a, b *Record) bool {
			return a.Result.Decision.RecommendedPayout > b.Result.Decision.RecommendedPayout
		}
	case SortPriority:
		less = func(a, b *Record) bool {
			return types.PriorityRank(a.Result.Triage.Priority) < types.PriorityRank(b.Result.Triage.Priority)
		}
	default:
		less = func(a, b *Record) bool { return a.ProcessedAt.After(b.ProcessedAt) }
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if less(rs[i], rs[j]) {
			return true
		}
		if less(rs[j], rs[i]) {
			return false
		}
		return rs[i].ClaimNumber < rs[j].ClaimNumber
	})
}

// ValidSort reports whether order is a known sort order or empty.
func ValidSort(order string) bool {
	switch order {
	case "", SortNewest, SortOldest, SortAmount, SortPriority:
		return true
	}
	return false
}
