package mcpserver

import (
	"context"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/policy"
	"github.com/claimdesk/claimdesk/server/internal/receiver"
	"github.com/claimdesk/claimdesk/server/internal/samples"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

const (
	defaultK = 3
	maxK     = 10
)

// Config wires a Server. Receiver and Store are required.
type Config struct {
	Receiver  *receiver.Receiver
	Store     *store.Store
	Retriever policy.Retriever
	Version   string
	Logger    *zap.Logger
}

// Server is the claimdesk MCP server.
type Server struct {
	MCPServer *sdkmcp.Server

	cfg Config
	log *zap.Logger
}

// New creates a Server with all tools registered.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "claimdesk", Version: cfg.Version}, nil),
		cfg:       cfg,
		log:       cfg.Logger.With(zap.String("component", "mcp")),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "process_claim",
		Description: "Run a First Notice of Loss through triage, fraud scoring and coverage. Pass either claim (FNOL JSON object) or sample (bundled sample name).",
	}, s.handleProcessClaim)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_claim",
		Description: "Fetch the stored decision for a processed claim.",
	}, s.handleGetClaim)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "search_policy",
		Description: "Retrieve the policy sections most relevant to a question about coverage.",
	}, s.handleSearchPolicy)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_samples",
		Description: "List the bundled sample claims that process_claim accepts by name.",
	}, s.handleListSamples)
}

// --- Tool input/output types ---

type processClaimInput struct {
	Claim      map[string]any `json:"claim,omitempty" jsonschema:"FNOL claim object; legacy field names are accepted"`
	Sample     string         `json:"sample,omitempty" jsonschema:"name of a bundled sample claim, e.g. john"`
	UseAgentic *bool          `json:"use_agentic,omitempty" jsonschema:"call the LLM when configured (default true)"`
}

type claimOutput struct {
	ClaimNumber      string               `json:"claim_number"`
	Decision         types.ClaimDecision  `json:"decision"`
	FNOLSummary      types.FNOLSummary    `json:"fnol_summary"`
	Triage           types.TriageDecision `json:"triage"`
	FraudSignal      types.FraudSignal    `json:"fraud_signal"`
	Mode             types.Mode           `json:"mode"`
	ProcessingTimeMS float64              `json:"processing_time_ms"`
	Override         *store.Override      `json:"override,omitempty"`
}

type getClaimInput struct {
	ClaimNumber string `json:"claim_number" jsonschema:"claim number, e.g. CLM-2024-001"`
}

type searchPolicyInput struct {
	Query string `json:"query" jsonschema:"coverage question or keywords"`
	K     int    `json:"k,omitempty" jsonschema:"number of sections to return (default 3, max 10)"`
}

type searchPolicyOutput struct {
	Results []policy.Chunk `json:"results"`
}

type listSamplesInput struct{}

type sampleInfo struct {
	Name            string `json:"name"`
	ClaimNumber     string `json:"claim_number"`
	LossDescription string `json:"loss_description"`
}

type listSamplesOutput struct {
	Samples []sampleInfo `json:"samples"`
}

// --- Tool handlers ---

func (s *Server) handleProcessClaim(ctx context.Context, _ *sdkmcp.CallToolRequest, input processClaimInput) (*sdkmcp.CallToolResult, claimOutput, error) {
	var (
		c   *types.ClaimInfo
		err error
	)
	switch {
	case input.Sample != "" && input.Claim != nil:
		return nil, claimOutput{}, errors.New("pass either claim or sample, not both")
	case input.Sample != "":
		c, err = samples.Load(input.Sample)
	case input.Claim != nil:
		c, err = types.DecodeClaim(input.Claim)
	default:
		return nil, claimOutput{}, errors.New("claim or sample is required")
	}
	if err != nil {
		return nil, claimOutput{}, err
	}

	useAgentic := input.UseAgentic == nil || *input.UseAgentic
	rec, err := s.cfg.Receiver.Process(ctx, c, useAgentic)
	if err != nil {
		return nil, claimOutput{}, fmt.Errorf("process %s: %w", c.ClaimNumber, err)
	}
	s.log.Info("claim processed via mcp", zap.String("claim", rec.ClaimNumber))
	return nil, toOutput(rec), nil
}

func (s *Server) handleGetClaim(_ context.Context, _ *sdkmcp.CallToolRequest, input getClaimInput) (*sdkmcp.CallToolResult, claimOutput, error) {
	rec, ok := s.cfg.Store.Get(input.ClaimNumber)
	if !ok {
		return nil, claimOutput{}, fmt.Errorf("claim %q not found", input.ClaimNumber)
	}
	return nil, toOutput(rec), nil
}

func (s *Server) handleSearchPolicy(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchPolicyInput) (*sdkmcp.CallToolResult, searchPolicyOutput, error) {
	if s.cfg.Retriever == nil {
		return nil, searchPolicyOutput{}, errors.New("policy retrieval is not configured")
	}
	if input.Query == "" {
		return nil, searchPolicyOutput{}, errors.New("query is required")
	}
	k := input.K
	if k <= 0 {
		k = defaultK
	}
	k = min(k, maxK)
	chunks, err := s.cfg.Retriever.Retrieve(ctx, input.Query, k)
	if err != nil {
		return nil, searchPolicyOutput{}, err
	}
	if chunks == nil {
		chunks = []policy.Chunk{}
	}
	return nil, searchPolicyOutput{Results: chunks}, nil
}

func (s *Server) handleListSamples(_ context.Context, _ *sdkmcp.CallToolRequest, _ listSamplesInput) (*sdkmcp.CallToolResult, listSamplesOutput, error) {
	all, err := samples.All()
	if err != nil {
		return nil, listSamplesOutput{}, err
	}
	out := listSamplesOutput{Samples: make([]sampleInfo, 0, len(all))}
	for _, sm := range all {
		out.Samples = append(out.Samples, sampleInfo{
			Name:            sm.Name,
			ClaimNumber:     sm.Claim.ClaimNumber,
			LossDescription: sm.Claim.LossDescription,
		})
	}
	return nil, out, nil
}

func toOutput(rec *store.Record) claimOutput {
	res := rec.Result
	return claimOutput{
		ClaimNumber:      rec.ClaimNumber,
		Decision:         res.Decision,
		FNOLSummary:      res.FNOLSummary,
		Triage:           res.Triage,
		FraudSignal:      res.FraudSignal,
		Mode:             res.Mode,
		ProcessingTimeMS: rec.ProcessingMS,
		Override:         rec.Override,
	}
}
