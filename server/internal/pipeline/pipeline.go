package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/llm"
	"github.com/claimdesk/claimdesk/server/internal/policy"
	"github.com/claimdesk/claimdesk/server/internal/rules"
)

// ErrPipeline wraps failures that are not the claim's fault, such as a
// result that fails validation.
var ErrPipeline = errors.New("pipeline failed")

// DefaultTopK is the number of sections retrieved per query.
const DefaultTopK = 2

// Event is a progress message from one stage of a run.
type Event struct {
	ClaimNumber string `json:"claim_number"`
	Stage       string `json:"stage"`
	Message     string `json:"message"`
}

// Observer receives stage events. It is called synchronously from Run and
// must not block.
type Observer func(Event)

// Options configures a Pipeline.
type Options struct {
	// LLM is the model client. Nil runs every stage on rules and never
	// touches the network.
	LLM llm.Client

	// Retriever finds policy sections. Nil uses the fallback policy text.
	Retriever policy.Retriever

	Declarations *policy.Declarations
	Rules        *rules.Rules
	Logger       *zap.Logger
	Observer     Observer
	TopK         int
}

// Pipeline runs claims through FNOL, triage, fraud and coverage. It is safe
// for concurrent use.
type Pipeline struct {
	llm       llm.Client
	retriever policy.Retriever
	decls     *policy.Declarations
	rules     atomic.Pointer[rules.Rules]
	log       *zap.Logger
	observer  Observer
	topK      int
}

// New returns a Pipeline for opts.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		llm:       opts.LLM,
		retriever: opts.Retriever,
		decls:     opts.Declarations,
		log:       opts.Logger,
		observer:  opts.Observer,
		topK:      opts.TopK,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.topK <= 0 {
		p.topK = DefaultTopK
	}
	r := opts.Rules
	if r == nil {
		r = rules.Default()
	}
	p.rules.Store(r)
	return p
}

// Mode reports whether the pipeline calls the LLM.
func (p *Pipeline) Mode() types.Mode {
	if p.llm != nil {
		return types.ModeLLM
	}
	return types.ModeFallback
}

// Name identifies the model in use, or "rules".
func (p *Pipeline) Name() string {
	if p.llm != nil {
		return p.llm.Name()
	}
	return "rules"
}

// Rules returns the rules currently in effect.
func (p *Pipeline) Rules() *rules.Rules {
	return p.rules.Load()
}

// SetRules swaps the rules used by subsequent runs.
func (p *Pipeline) SetRules(r *rules.Rules) {
	if r != nil {
		p.rules.Store(r)
	}
}

// Run evaluates one claim. An invalid claim returns an error wrapping
// types.ErrInvalidClaim. LLM failures never fail a run: the stage falls back
// to its rule output.
func (p *Pipeline) Run(ctx context.Context, c *types.ClaimInfo) (*types.Result, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil claim", types.ErrInvalidClaim)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := p.rules.Load()
	res := &types.Result{
		Mode:   p.Mode(),
		Stages: make(map[string]types.Source, len(types.Stages)),
	}

	p.emit(c, types.StageFNOL, "Summarizing FNOL")
	fnol, src := runStage(ctx, p, c, types.StageFNOL,
		render(fnolPrompt, c), llm.FNOLSchema,
		func() types.FNOLSummary { return r.FNOL(c) })
	res.FNOLSummary, res.Stages[types.StageFNOL] = fnol, src

	p.emit(c, types.StageTriage, "Computing triage")
	triage, src := runStage(ctx, p, c, types.StageTriage,
		render(triagePrompt, c, fnol), llm.TriageSchema,
		func() types.TriageDecision { return r.Triage(c) })
	res.Triage, res.Stages[types.StageTriage] = triage, src

	p.emit(c, types.StageFraud, "Running fraud scan")
	fraud, src := runStage(ctx, p, c, types.StageFraud,
		render(fraudPrompt, c, triage), llm.FraudSchema,
		func() types.FraudSignal { return r.Fraud(c) })
	r.ApplySIU(&fraud)
	res.FraudSignal, res.Stages[types.StageFraud] = fraud, src

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.emit(c, types.StageQueries, "Generating policy queries")
	queries, src := runStage(ctx, p, c, types.StageQueries,
		render(queriesPrompt, c), llm.QueriesSchema,
		func() types.PolicyQueries { return r.Queries(c) })
	res.PolicyQueries, res.Stages[types.StageQueries] = queries.Queries, src

	decl := p.decls.Lookup(c.PolicyNumber)
	text := p.policyText(ctx, c, decl, queries.Queries)
	res.PolicyTextChars = len(text)

	p.emit(c, types.StageCoverage, "Generating policy recommendation")
	rec, src := runStage(ctx, p, c, types.StageCoverage,
		render(recommendationPrompt, c, text), llm.RecommendationSchema,
		func() types.PolicyRecommendation { return r.Coverage(c, decl) })
	rec.RecommendationSummary = rules.Sanitize(rec.RecommendationSummary)
	res.Stages[types.StageCoverage] = src

	decision, rationale := r.Guard(c, decl, rec)
	decision.Notes = notes(c, &fnol, &triage, &fraud, &decision, rationale)
	res.Decision = decision

	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("%w: claim %s: %v", ErrPipeline, c.ClaimNumber, err)
	}

	p.emit(c, types.StageCoverage, fmt.Sprintf("Final decision: %s, covered=%t, payout=%s",
		decision.Outcome, decision.Covered, rules.Money(decision.RecommendedPayout)))
	p.log.Info("claim evaluated",
		zap.String("claim", c.ClaimNumber),
		zap.String("mode", string(res.Mode)),
		zap.String("outcome", string(decision.Outcome)),
		zap.Float64("payout", decision.RecommendedPayout),
		zap.Float64("fraud_risk", fraud.RiskScore),
	)
	return res, nil
}

// runStage asks the LLM for a T and falls back to the rule output on any
// error. It reports which path produced the value.
func runStage[T any](ctx context.Context, p *Pipeline, c *types.ClaimInfo, stage, prompt string, schema *genai.Schema, fallback func() T) (T, types.Source) {
	if p.llm != nil {
		out, err := llm.Predict[T](ctx, p.llm, prompt, schema)
		if err == nil {
			return out, types.SourceLLM
		}
		p.log.Warn("llm stage failed, using rules",
			zap.String("claim", c.ClaimNumber),
			zap.String("stage", stage),
			zap.Error(err),
		)
		p.emit(c, stage, "Gemini call failed, using fallback: "+err.Error())
	}
	return fallback(), types.SourceRules
}

// policyText retrieves sections for every query plus the declarations page
// and joins them. Retrieval errors are logged and skipped.
func (p *Pipeline) policyText(ctx context.Context, c *types.ClaimInfo, decl *types.Declaration, queries []string) string {
	var chunks []policy.Chunk
	if p.retriever != nil {
		for _, q := range queries {
			p.emit(c, types.StageCoverage, "Query: "+q)
			got, err := p.retriever.Retrieve(ctx, q, p.topK)
			if err != nil {
				p.log.Warn("policy retrieval failed",
					zap.String("claim", c.ClaimNumber),
					zap.String("query", q),
					zap.Error(err),
				)
				p.emit(c, types.StageCoverage, "Policy retrieval failed: "+err.Error())
				continue
			}
			chunks = append(chunks, got...)
		}
	}
	if decl != nil {
		chunks = append(chunks, policy.DeclarationChunk(decl))
	}
	if text := policy.Join(chunks); text != "" {
		return text
	}
	return policy.FallbackText(c)
}

func (p *Pipeline) emit(c *types.ClaimInfo, stage, msg string) {
	if p.observer == nil {
		return
	}
	p.observer(Event{ClaimNumber: c.ClaimNumber, Stage: stage, Message: msg})
}
