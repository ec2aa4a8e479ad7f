package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimdesk/claimdesk/pkg/types"
)

func TestDefaultCorpus(t *testing.T) {
	c := DefaultCorpus()
	secs := c.Sections()
	require.NotEmpty(t, secs)
	assert.Equal(t, TitleStandard, secs[0].Title)

	for _, title := range []string{TitleStandard, TitleCommercial, TitleTotalLoss, TitleFraud, TitleComprehensive, TitleInjury, TitleSubrogation} {
		ch, ok := c.Section(title)
		require.True(t, ok, title)
		assert.NotEmpty(t, ch.Text)
		assert.Equal(t, "corpus", ch.Source)
	}

	ch, ok := c.Section("total loss settlement")
	require.True(t, ok)
	assert.Equal(t, "total-loss-settlement", ch.ID)
	assert.Contains(t, ch.Text, "75%")
}

func TestParseCorpus(t *testing.T) {
	c, err := ParseCorpus([]byte("# Title\npreamble\n## One\nalpha\n\n## Two & Three\nbeta\n"))
	require.NoError(t, err)
	secs := c.Sections()
	require.Len(t, secs, 2)
	assert.Equal(t, "one", secs[0].ID)
	assert.Equal(t, "One\n\nalpha", secs[0].Text)
	assert.Equal(t, "two-three", secs[1].ID)

	_, err = ParseCorpus([]byte("# only a title\n"))
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.md")
	require.NoError(t, os.WriteFile(path, []byte("## Towing\nUp to $100 per disablement.\n"), 0o600))
	c, err := LoadCorpus(path)
	require.NoError(t, err)
	sec, ok := c.Section("towing")
	require.True(t, ok)
	assert.Contains(t, sec.Text, "$100")

	_, err = LoadCorpus(filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDeclarations(t *testing.T) {
	d := DefaultDeclarations()
	assert.Greater(t, d.Len(), 5)

	p := d.Lookup("pol-ca-860224")
	require.NotNil(t, p)
	assert.Equal(t, 750.0, p.CollisionDeductible)
	require.Len(t, p.Endorsements, 1)

	// Lookup returns a copy.
	p.Endorsements[0] = "changed"
	assert.NotEqual(t, "changed", d.Lookup("POL-CA-860224").Endorsements[0])

	assert.Nil(t, d.Lookup("POL-NOPE"))

	var none *Declarations
	assert.Nil(t, none.Lookup("POL-CA-860224"))
	assert.Zero(t, none.Len())
}

func TestLoadDeclarations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  - policy_number: P-1\n    collision_limit: 9000\n"), 0o600))
	d, err := LoadDeclarations(path)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, d.Lookup("P-1").CollisionLimit)

	require.NoError(t, os.WriteFile(path, []byte("policies:\n  - holder: nobody\n"), 0o600))
	_, err = LoadDeclarations(path)
	assert.Error(t, err)
}

func TestDeclarationChunk(t *testing.T) {
	ch := DeclarationChunk(&types.Declaration{
		PolicyNumber:        "POL-X",
		Holder:              "Ann",
		CollisionDeductible: 500,
		Endorsements:        []string{"Rideshare endorsement"},
	})
	assert.Equal(t, "declarations-pol-x", ch.ID)
	assert.Contains(t, ch.Text, "Policy Number: POL-X")
	assert.Contains(t, ch.Text, "Endorsements: Rideshare endorsement")
}

func TestKeywordRetriever(t *testing.T) {
	k := NewKeywordRetriever(DefaultCorpus())
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		{"commercial use exclusions", TitleCommercial},
		{"Was the car totaled?", TitleTotalLoss},
		{"fraud red flags", TitleFraud},
		{"Vandalism coverage", TitleComprehensive},
		{"medical payments", TitleInjury},
		{"insured not at fault", TitleSubrogation},
		{"deductible amount", TitleStandard},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := k.Retrieve(ctx, tt.query, 1)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Title)
		})
	}

	got, err := k.Retrieve(ctx, "delivery driver fraud with injury", 5)
	require.NoError(t, err)
	titles := make([]string, len(got))
	for i, c := range got {
		titles[i] = c.Title
	}
	assert.Equal(t, []string{TitleCommercial, TitleFraud, TitleInjury}, titles)
}

func TestIndexRetriever(t *testing.T) {
	ctx := context.Background()
	ix, err := NewIndexRetriever(ctx, DefaultCorpus())
	require.NoError(t, err)
	defer ix.Close()

	got, err := ix.Retrieve(ctx, "salvage value and title transfer", 2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, TitleTotalLoss, got[0].Title)
	assert.Greater(t, got[0].Score, 0.0)

	got, err = ix.Retrieve(ctx, "police report for keyed paint", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TitleComprehensive, got[0].Title)

	// No indexed term at all: keyword routing takes over.
	got, err = ix.Retrieve(ctx, "zzzqqq", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TitleStandard, got[0].Title)

	// Punctuation and FTS operators in the query are harmless.
	_, err = ix.Retrieve(ctx, `"deductible" AND (NOT) -collision*`, 3)
	assert.NoError(t, err)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"deductible" OR "collision"`, ftsQuery("The deductible for collision"))
	assert.Equal(t, "", ftsQuery("a to of"))
	assert.Equal(t, `"pol" OR "100234"`, ftsQuery("POL-100234 POL"))
}

// fakeEmbedder maps text to a two-dimensional vector by keyword.
type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) vec(s string) []float32 {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "subrogation"):
		return []float32{1, 0}
	case strings.Contains(s, "fraud"):
		return []float32{0, 1}
	default:
		return []float32{0.1, 0.1}
	}
}

func (f fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vec(t)
	}
	return out, nil
}

func (f fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return f.vec(text), nil
}

func TestEmbeddingRetriever(t *testing.T) {
	ctx := context.Background()
	r, err := NewEmbeddingRetriever(ctx, DefaultCorpus(), fakeEmbedder{})
	require.NoError(t, err)

	got, err := r.Retrieve(ctx, "recover from the fraud unit", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TitleFraud, got[0].Title)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)

	got, err = r.Retrieve(ctx, "anything", 100)
	require.NoError(t, err)
	assert.Len(t, got, len(DefaultCorpus().Sections()))

	_, err = NewEmbeddingRetriever(ctx, DefaultCorpus(), fakeEmbedder{err: errors.New("quota")})
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestJoin(t *testing.T) {
	a := Chunk{ID: "a", Text: "A"}
	b := Chunk{ID: "b", Text: "B"}
	assert.Equal(t, "A\n\nB", Join([]Chunk{a, b, a}))
	assert.Equal(t, "", Join(nil))
}

func TestFallbackText(t *testing.T) {
	txt := FallbackText(&types.ClaimInfo{PolicyNumber: "POL-9"})
	assert.Contains(t, txt, "Policy Number: POL-9")
	assert.Contains(t, txt, "EXCLUSIONS")
}
