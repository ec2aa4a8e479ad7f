package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimdesk/claimdesk/pkg/types"
)

// fakeGemini serves generateContent and batchEmbedContents.
func fakeGemini(t *testing.T, text string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`))
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			assert.Contains(t, string(body), "application/json")
			resp := map[string]any{
				"candidates": []any{map[string]any{
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": text}},
					},
					"finishReason": "STOP",
				}},
			}
			_ = json.NewEncoder(w).Encode(resp)
		case strings.HasSuffix(r.URL.Path, ":batchEmbedContents"):
			var req struct {
				Requests []json.RawMessage `json:"requests"`
			}
			_ = json.Unmarshal(body, &req)
			embs := make([]any, len(req.Requests))
			for i := range embs {
				embs[i] = map[string]any{"values": []float32{float32(i), 1}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embs})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestGemini(t *testing.T, baseURL string) *Gemini {
	t.Helper()
	g, err := NewGemini(context.Background(), GeminiConfig{
		APIKey:      "test-key",
		Model:       "gemini-test",
		BaseURL:     baseURL,
		Temperature: 0.2,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)
	return g
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGemini_GenerateJSON(t *testing.T) {
	srv, calls := fakeGemini(t, `{"queries":["collision deductible","commercial exclusion"]}`, http.StatusOK)
	g := newTestGemini(t, srv.URL)
	assert.Equal(t, "gemini:gemini-test", g.Name())

	q, err := Predict[types.PolicyQueries](context.Background(), g, "prompt", QueriesSchema)
	require.NoError(t, err)
	assert.Equal(t, []string{"collision deductible", "commercial exclusion"}, q.Queries)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGemini_ServerError(t *testing.T) {
	srv, _ := fakeGemini(t, "", http.StatusInternalServerError)
	g := newTestGemini(t, srv.URL)

	_, err := g.GenerateJSON(context.Background(), "prompt", nil)
	assert.Error(t, err)
}

func TestGemini_Embed(t *testing.T) {
	srv, _ := fakeGemini(t, "", http.StatusOK)
	g := newTestGemini(t, srv.URL)

	vecs, err := g.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{2, 1}, vecs[2])

	v, err := g.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, v)
}

func TestCached_GeminiHitsServerOnce(t *testing.T) {
	srv, calls := fakeGemini(t, `{"queries":["q"]}`, http.StatusOK)
	c := Cached(newTestGemini(t, srv.URL), NewMemoryCache(time.Minute))

	for i := 0; i < 3; i++ {
		_, err := Predict[types.PolicyQueries](context.Background(), c, "same prompt", QueriesSchema)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}
