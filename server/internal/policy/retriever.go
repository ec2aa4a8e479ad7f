package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/claimdesk/claimdesk/pkg/types"
)

// Retriever finds policy sections relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error)
}

// Section titles the keyword router can return.
const (
	TitleStandard      = "Standard Auto Policy Coverage"
	TitleCommercial    = "Commercial Use Exclusion"
	TitleTotalLoss     = "Total Loss Settlement"
	TitleFraud         = "Fraud Red Flags"
	TitleComprehensive = "Comprehensive Coverage"
	TitleInjury        = "Bodily Injury and Medical Payments"
	TitleSubrogation   = "Subrogation"
)

// topics routes query keywords to corpus sections, first match first.
var topics = []struct {
	title    string
	keywords []string
}{
	{TitleCommercial, []string{"commercial", "delivery", "rideshare"}},
	{TitleTotalLoss, []string{"total loss", "totaled"}},
	{TitleFraud, []string{"fraud", "suspicious"}},
	{TitleComprehensive, []string{"vandalism", "comprehensive", "theft"}},
	{TitleInjury, []string{"bodily injury", "injury", "medical"}},
	{TitleSubrogation, []string{"subrogation", "not at fault"}},
}

// KeywordRetriever routes queries to corpus sections by keyword. It never
// returns an empty result: unmatched queries get the standard coverage
// overview.
type KeywordRetriever struct {
	corpus *Corpus
}

// NewKeywordRetriever returns a KeywordRetriever over c.
func NewKeywordRetriever(c *Corpus) *KeywordRetriever {
	return &KeywordRetriever{corpus: c}
}

// Retrieve implements Retriever.
func (k *KeywordRetriever) Retrieve(_ context.Context, query string, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = 1
	}
	q := strings.ToLower(query)
	var out []Chunk
	for _, t := range topics {
		if len(out) == topK {
			break
		}
		for _, kw := range t.keywords {
			if strings.Contains(q, kw) {
				if ch, ok := k.corpus.Section(t.title); ok {
					out = append(out, ch)
				}
				break
			}
		}
	}
	if len(out) == 0 {
		if ch, ok := k.corpus.Section(TitleStandard); ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

// Join concatenates chunk texts, skipping repeated IDs, separated by a
// blank line.
func Join(chunks []Chunk) string {
	seen := make(map[string]bool, len(chunks))
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// FallbackText is the policy text used when retrieval yields nothing.
func FallbackText(c *types.ClaimInfo) string {
	return fmt.Sprintf(`CALIFORNIA PERSONAL AUTO POLICY
Policy Number: %s

PART D - COVERAGE FOR DAMAGE TO YOUR AUTO
COLLISION COVERAGE
We will pay for direct and accidental loss to your covered auto caused by collision with another object or by upset of your covered auto.

DEDUCTIBLE
For each loss, our limit of liability will be reduced by the applicable deductible amount shown in the Declarations.
Standard collision deductible: $500
Comprehensive deductible: $250

LIMITS OF LIABILITY
Our limit of liability for loss will be the lesser of:
1. The actual cash value of the stolen or damaged property; or
2. The amount necessary to repair or replace the property.

EXCLUSIONS
We do not provide coverage for:
1. Loss to your covered auto which occurs while it is used to carry persons or property for compensation
2. Loss due to wear and tear, freezing, mechanical breakdown
3. Loss to equipment designed for the reproduction of sound`, c.PolicyNumber)
}
