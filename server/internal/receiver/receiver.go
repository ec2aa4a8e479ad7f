package receiver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/alerts"
	"github.com/claimdesk/claimdesk/server/internal/appraisal"
	"github.com/claimdesk/claimdesk/server/internal/pipeline"
	"github.com/claimdesk/claimdesk/server/internal/rules"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

// ErrNoPipeline is returned when no pipeline is configured.
var ErrNoPipeline = errors.New("receiver: no pipeline configured")

// Notifier is told when stored claims change, e.g. to push a dashboard
// update to websocket clients.
type Notifier interface {
	Notify()
}

// Config wires a Receiver. Only Fallback and Store are required.
type Config struct {
	// Agentic calls the LLM. Nil when no model is configured; agentic
	// requests then run on Fallback.
	Agentic  *pipeline.Pipeline
	Fallback *pipeline.Pipeline

	Store       *store.Store
	Alerts      *alerts.Engine
	Inspections *appraisal.Queue
	Notifier    Notifier
	Logger      *zap.Logger

	// Parallelism bounds concurrent runs in ProcessBatch.
	Parallelism int
}

// Receiver accepts claims from every intake path (REST, inbox, MCP), runs
// them through the pipeline and records the outcome.
type Receiver struct {
	cfg Config
	log *zap.Logger
}

// New creates a Receiver.
func New(cfg Config) *Receiver {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Receiver{cfg: cfg, log: cfg.Logger}
}

// AgenticAvailable reports whether an LLM-backed pipeline is configured.
func (r *Receiver) AgenticAvailable() bool {
	return r.cfg.Agentic != nil
}

// Mode returns the mode a request with useAgentic would run in.
func (r *Receiver) Mode(useAgentic bool) types.Mode {
	if p := r.pipelineFor(useAgentic); p != nil {
		return p.Mode()
	}
	return types.ModeFallback
}

// Process runs one claim and stores the result. Side effects follow the
// stored record: alert rules are evaluated, field-adjuster claims are queued
// for inspection, and the notifier is told.
func (r *Receiver) Process(ctx context.Context, c *types.ClaimInfo, useAgentic bool) (*store.Record, error) {
	p := r.pipelineFor(useAgentic)
	if p == nil {
		return nil, ErrNoPipeline
	}

	start := time.Now()
	res, err := p.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	rec := r.cfg.Store.Put(c, res, time.Since(start))

	if r.cfg.Alerts != nil {
		r.cfg.Alerts.Evaluate(c, res)
	}
	if r.cfg.Inspections != nil && res.Triage.FieldAssignment() {
		r.cfg.Inspections.Enqueue(c, res)
	}
	r.notify()

	r.log.Debug("claim stored",
		zap.String("claim", c.ClaimNumber),
		zap.String("mode", string(res.Mode)),
		zap.Float64("processing_ms", rec.ProcessingMS),
	)
	return rec, nil
}

// Item is the outcome of one claim in a batch.
type Item struct {
	Index       int
	ClaimNumber string
	Record      *store.Record
	Err         error
}

// ProcessBatch runs claims with bounded parallelism. Items come back in
// input order; a failed claim does not stop the others.
func (r *Receiver) ProcessBatch(ctx context.Context, claims []*types.ClaimInfo, useAgentic bool) []Item {
	items := make([]Item, len(claims))
	var g errgroup.Group
	g.SetLimit(r.cfg.Parallelism)
	for i, c := range claims {
		items[i].Index = i
		if c != nil {
			items[i].ClaimNumber = c.ClaimNumber
		}
		g.Go(func() error {
			items[i].Record, items[i].Err = r.Process(ctx, c, useAgentic)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// Override applies an adjuster override and resolves the claim's alerts.
func (r *Receiver) Override(claimNumber string, req store.OverrideRequest) (*store.Record, error) {
	rec, err := r.cfg.Store.Override(claimNumber, req)
	if err != nil {
		return nil, err
	}
	if r.cfg.Alerts != nil && rec.Override.Action != store.ActionApprove {
		r.cfg.Alerts.Resolve(claimNumber)
	}
	r.notify()
	return rec, nil
}

// SetRules swaps the rules of every pipeline and the inspection queue.
func (r *Receiver) SetRules(rs *rules.Rules) {
	for _, p := range []*pipeline.Pipeline{r.cfg.Agentic, r.cfg.Fallback} {
		if p != nil {
			p.SetRules(rs)
		}
	}
	if r.cfg.Inspections != nil {
		r.cfg.Inspections.SetRules(rs)
	}
	r.log.Info("rules reloaded")
}

func (r *Receiver) pipelineFor(useAgentic bool) *pipeline.Pipeline {
	if useAgentic && r.cfg.Agentic != nil {
		return r.cfg.Agentic
	}
	return r.cfg.Fallback
}

func (r *Receiver) notify() {
	if r.cfg.Notifier != nil {
		r.cfg.Notifier.Notify()
	}
}
