package mcpserver_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/claimdesk/claimdesk/server/internal/mcpserver"
	"github.com/claimdesk/claimdesk/server/internal/pipeline"
	"github.com/claimdesk/claimdesk/server/internal/policy"
	"github.com/claimdesk/claimdesk/server/internal/receiver"
	"github.com/claimdesk/claimdesk/server/internal/samples"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

func newTestServer(t *testing.T) (*mcpserver.Server, *store.Store) {
	t.Helper()
	log := zaptest.NewLogger(t)
	retriever := policy.NewKeywordRetriever(policy.DefaultCorpus())
	st := store.New(time.Hour, log)
	recv := receiver.New(receiver.Config{
		Fallback: pipeline.New(pipeline.Options{
			Retriever:    retriever,
			Declarations: policy.DefaultDeclarations(),
			Logger:       log,
		}),
		Store:  st,
		Logger: log,
	})
	return mcpserver.New(mcpserver.Config{
		Receiver:  recv,
		Store:     st,
		Retriever: retriever,
		Version:   "test",
		Logger:    log,
	}), st
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	_, err := srv.MCPServer.Connect(ctx, t1, nil)
	require.NoError(t, err)
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "CallTool(%s)", name)
	require.False(t, res.IsError, "CallTool(%s) returned error: %s", name, textOf(res))
	require.NoError(t, json.Unmarshal([]byte(textOf(res)), out), "unmarshal %s result", name)
}

func callToolExpectError(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return err.Error()
	}
	require.True(t, res.IsError, "expected %s to fail", name)
	return textOf(res)
}

func textOf(res *sdkmcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

type claimResult struct {
	ClaimNumber string `json:"claim_number"`
	Mode        string `json:"mode"`
	Decision    struct {
		Outcome           string  `json:"outcome"`
		Covered           bool    `json:"covered"`
		RecommendedPayout float64 `json:"recommended_payout"`
	} `json:"decision"`
	Triage struct {
		Priority string `json:"priority"`
	} `json:"triage"`
}

func TestListTools(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t)
	session := connectInMemory(t, ctx, srv)

	res, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.ElementsMatch(t, []string{"process_claim", "get_claim", "search_policy", "list_samples"}, names)
}

func TestProcessClaim_Sample(t *testing.T) {
	ctx := context.Background()
	srv, st := newTestServer(t)
	session := connectInMemory(t, ctx, srv)

	var got claimResult
	callTool(t, ctx, session, "process_claim", map[string]any{"sample": "john"}, &got)
	assert.Equal(t, "CLM-2024-001", got.ClaimNumber)
	assert.Equal(t, "approve", got.Decision.Outcome)
	assert.Equal(t, 2700.0, got.Decision.RecommendedPayout)
	assert.Equal(t, "fallback", got.Mode)
	assert.Equal(t, 1, st.Count())
}

func TestProcessClaim_Inline(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t)
	session := connectInMemory(t, ctx, srv)

	raw, err := samples.Raw("denied-claim")
	require.NoError(t, err)
	var claim map[string]any
	require.NoError(t, json.Unmarshal(raw, &claim))

	var got claimResult
	callTool(t, ctx, session, "process_claim", map[string]any{"claim": claim, "use_agentic": false}, &got)
	assert.Equal(t, "deny", got.Decision.Outcome)
	assert.False(t, got.Decision.Covered)
	assert.Zero(t, got.Decision.RecommendedPayout)
}

func TestProcessClaim_Errors(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t)
	session := connectInMemory(t, ctx, srv)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"neither", map[string]any{}, "claim or sample is required"},
		{"both", map[string]any{"sample": "john", "claim": map[string]any{"claim_number": "X"}}, "not both"},
		{"unknown sample", map[string]any{"sample": "nope"}, "unknown sample"},
		{"invalid claim", map[string]any{"claim": map[string]any{"claim_number": "X"}}, "invalid claim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := callToolExpectError(t, ctx, session, "process_claim", tt.args)
			assert.Contains(t, msg, tt.want)
		})
	}
}

func TestGetClaim(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t)
	session := connectInMemory(t, ctx, srv)

	msg := callToolExpectError(t, ctx, session, "get_claim", map[string]any{"claim_number": "CLM-2024-004"})
	assert.Contains(t, msg, "not found")

	var processed claimResult
	callTool(t, ctx, session, "process_claim", map[string]any{"sample": "total-loss"}, &processed)

	var got claimResult
	callTool(t, ctx, session, "get_claim", map[string]any{"claim_number": "CLM-2024-004"}, &got)
	assert.Equal(t, processed, got)
	assert.Equal(t, "total_loss", got.Decision.Outcome)
	assert.Equal(t, "Immediate", got.Triage.Priority)
}

func TestSearchPolicy(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t)
	session := connectInMemory(t, ctx, srv)

	var got struct {
		Results []policy.Chunk `json:"results"`
	}
	callTool(t, ctx, session, "search_policy", map[string]any{"query": "commercial use exclusions", "k": 1}, &got)
	require.Len(t, got.Results, 1)
	assert.Equal(t, policy.TitleCommercial, got.Results[0].Title)

	msg := callToolExpectError(t, ctx, session, "search_policy", map[string]any{"query": ""})
	assert.Contains(t, msg, "query is required")
}

func TestListSamples(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t)
	session := connectInMemory(t, ctx, srv)

	var got struct {
		Samples []struct {
			Name        string `json:"name"`
			ClaimNumber string `json:"claim_number"`
		} `json:"samples"`
	}
	callTool(t, ctx, session, "list_samples", map[string]any{}, &got)
	require.Len(t, got.Samples, len(samples.Names()))
	for _, s := range got.Samples {
		assert.NotEmpty(t, s.Name)
		assert.Contains(t, s.ClaimNumber, "CLM-2024-")
	}
}
