package api

import (
	"time"

	"github.com/claimdesk/claimdesk/server/internal/alerts"
	"github.com/claimdesk/claimdesk/server/internal/appraisal"
	"github.com/claimdesk/claimdesk/server/internal/kpi"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

// queueSize caps the work queue in a dashboard snapshot.
const queueSize = 25

// Sources are the components a dashboard snapshot reads. Alerts and
// Inspections may be nil.
type Sources struct {
	Store       *store.Store
	Alerts      *alerts.Engine
	Inspections *appraisal.Queue
}

// BuildDashboard assembles the KPIs, the open work queue sorted by triage
// priority, active alerts and the inspection summary. It is shared by
// GET /api/v1/dashboard and the websocket hub.
func BuildDashboard(src Sources) DashboardResponse {
	recs := src.Store.All()
	resp := DashboardResponse{
		KPIs:        kpi.Compute(recs),
		Queue:       []QueueItem{},
		Alerts:      []*alerts.Alert{},
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	page, _ := src.Store.List(store.Query{Sort: store.SortPriority, Limit: queueSize})
	for _, r := range page {
		resp.Queue = append(resp.Queue, toQueueItem(r))
	}
	if src.Alerts != nil {
		resp.Alerts = src.Alerts.Active()
	}
	if src.Inspections != nil {
		resp.Inspections = src.Inspections.Summary()
	}
	return resp
}

func toQueueItem(r *store.Record) QueueItem {
	res := r.Result
	item := QueueItem{
		ClaimNumber:       r.ClaimNumber,
		Priority:          res.Triage.Priority,
		Assignment:        res.Triage.Assignment,
		Outcome:           res.Decision.Outcome,
		RecommendedPayout: res.Decision.RecommendedPayout,
		RiskScore:         res.FraudSignal.RiskScore,
		SIUReferral:       res.FraudSignal.SIUReferral,
		Overridden:        r.Override != nil,
		SLADue:            r.ProcessedAt.Add(time.Duration(res.Triage.TargetSLAHours) * time.Hour).UTC(),
	}
	if r.Claim != nil {
		item.Claimant = r.Claim.ClaimantName
	}
	return item
}

// toClaimResponse maps a stored record to its JSON representation.
func toClaimResponse(r *store.Record) ClaimResponse {
	res := r.Result
	status := StatusProcessed
	if r.Override != nil {
		status = StatusOverridden
	}
	ms := r.ProcessingMS
	return ClaimResponse{
		ClaimNumber:      r.ClaimNumber,
		Status:           status,
		Decision:         &res.Decision,
		FNOLSummary:      &res.FNOLSummary,
		Triage:           &res.Triage,
		FraudSignal:      &res.FraudSignal,
		PolicyQueries:    res.PolicyQueries,
		Mode:             res.Mode,
		Stages:           res.Stages,
		ProcessingTimeMS: &ms,
		ProcessedAt:      r.ProcessedAt.UTC().Format(time.RFC3339),
		Override:         r.Override,
		Hints:            computeHints(r),
	}
}

// failedResponse is the batch entry for a claim that could not be processed.
func failedResponse(claimNumber string, err error) ClaimResponse {
	if claimNumber == "" {
		claimNumber = "UNKNOWN"
	}
	return ClaimResponse{ClaimNumber: claimNumber, Status: StatusFailed, Error: err.Error()}
}
