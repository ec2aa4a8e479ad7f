package api

import (
	"time"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/alerts"
	"github.com/claimdesk/claimdesk/server/internal/appraisal"
	"github.com/claimdesk/claimdesk/server/internal/kpi"
	"github.com/claimdesk/claimdesk/server/internal/policy"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

// Claim statuses in ClaimResponse.
const (
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
	StatusOverridden = "overridden"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status               string     `json:"status"`
	Service              string     `json:"service"`
	Version              string     `json:"version"`
	AgenticModeAvailable bool       `json:"agentic_mode_available"`
	Mode                 types.Mode `json:"mode"`
	ClaimsProcessed      int        `json:"claims_processed"`
	AlertsFiring         int        `json:"alerts_firing"`
}

// ProcessRequest is the body of POST /api/v1/claims/process.
// UseAgenticMode defaults to true.
type ProcessRequest struct {
	ClaimData      map[string]any `json:"claim_data"`
	UseAgenticMode *bool          `json:"use_agentic_mode,omitempty"`
}

// BatchRequest is the body of POST /api/v1/claims/batch.
type BatchRequest struct {
	Claims         []map[string]any `json:"claims"`
	UseAgenticMode *bool            `json:"use_agentic_mode,omitempty"`
}

// ClaimResponse is one processed claim. A failed batch item carries only
// ClaimNumber ("UNKNOWN" when the input had none), Status and Error.
type ClaimResponse struct {
	ClaimNumber      string                  `json:"claim_number"`
	Status           string                  `json:"status"`
	Error            string                  `json:"error,omitempty"`
	Decision         *types.ClaimDecision    `json:"decision,omitempty"`
	FNOLSummary      *types.FNOLSummary      `json:"fnol_summary,omitempty"`
	Triage           *types.TriageDecision   `json:"triage,omitempty"`
	FraudSignal      *types.FraudSignal      `json:"fraud_signal,omitempty"`
	PolicyQueries    []string                `json:"policy_queries,omitempty"`
	Mode             types.Mode              `json:"mode,omitempty"`
	Stages           map[string]types.Source `json:"stages,omitempty"`
	ProcessingTimeMS *float64                `json:"processing_time_ms,omitempty"`
	ProcessedAt      string                  `json:"processed_at,omitempty"` // RFC3339
	Override         *store.Override         `json:"override,omitempty"`
	Hints            []ReviewHint            `json:"hints,omitempty"`
}

// BatchResponse is the payload for POST /api/v1/claims/batch.
type BatchResponse struct {
	TotalClaims int             `json:"total_claims"`
	Processed   int             `json:"processed"`
	Failed      int             `json:"failed"`
	Results     []ClaimResponse `json:"results"`
}

// ListResponse is the payload for GET /api/v1/claims.
type ListResponse struct {
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Claims []ClaimResponse `json:"claims"`
}

// SearchResponse is the payload for GET /api/v1/policy/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []policy.Chunk `json:"results"`
}

// SampleResponse is one entry of GET /api/v1/samples.
type SampleResponse struct {
	Name                string  `json:"name"`
	ClaimNumber         string  `json:"claim_number"`
	ClaimantName        string  `json:"claimant_name"`
	LossDescription     string  `json:"loss_description"`
	EstimatedRepairCost float64 `json:"estimated_repair_cost"`
}

// EnqueueRequest is the body of POST /api/v1/inspections.
type EnqueueRequest struct {
	ClaimNumber string `json:"claim_number"`
}

// AssignRequest is the body of POST /api/v1/inspections/{id}/assign.
// Date accepts YYYY-MM-DD or RFC3339.
type AssignRequest struct {
	Appraiser string `json:"appraiser"`
	Date      string `json:"date"`
}

// CompletedResponse is the payload for GET /api/v1/inspections/completed.
type CompletedResponse struct {
	Summary appraisal.Summary  `json:"summary"`
	Reports []appraisal.Report `json:"reports"`
}

// QueueItem is one row of the dashboard work queue.
type QueueItem struct {
	ClaimNumber       string        `json:"claim_number"`
	Claimant          string        `json:"claimant"`
	Priority          string        `json:"priority"`
	Assignment        string        `json:"assignment"`
	Outcome           types.Outcome `json:"outcome"`
	RecommendedPayout float64       `json:"recommended_payout"`
	RiskScore         float64       `json:"risk_score"`
	SIUReferral       bool          `json:"siu_referral"`
	Overridden        bool          `json:"overridden"`
	SLADue            time.Time     `json:"sla_due"`
}

// DashboardResponse is the payload for GET /api/v1/dashboard and the data of
// every websocket broadcast.
type DashboardResponse struct {
	KPIs        kpi.Summary       `json:"kpis"`
	Queue       []QueueItem       `json:"queue"`
	Alerts      []*alerts.Alert   `json:"alerts"`
	Inspections appraisal.Summary `json:"inspections"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
