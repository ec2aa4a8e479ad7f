package rules

import (
	"slices"
	"strings"
	"unicode"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/config"
)

// Loss types.
const (
	LossCollision     = "collision"
	LossComprehensive = "comprehensive"
)

// Policy sections cited by rule-based decisions.
const (
	SectionCommercialExclusion = "Part D - Exclusions: Commercial Use"
	SectionTotalLoss           = "Part D - Limit of Liability: Total Loss"
	SectionLimits              = "Part D - Limit of Liability"
	SectionCollision           = "Part D - Collision Coverage"
	SectionComprehensive       = "Part D - Comprehensive Coverage"
)

// Rules evaluates the deterministic claim rules for one set of thresholds.
// A Rules value is immutable and safe for concurrent use; reloading config
// means building a new one.
type Rules struct {
	cfg        config.RulesConfig
	commercial [][]string
}

// New returns Rules for cfg. Empty keyword lists fall back to the defaults.
func New(cfg config.RulesConfig) *Rules {
	def := config.DefaultRules()
	if len(cfg.CommercialKeywords) == 0 {
		cfg.CommercialKeywords = def.CommercialKeywords
	}
	if len(cfg.ComprehensiveKeywords) == 0 {
		cfg.ComprehensiveKeywords = def.ComprehensiveKeywords
	}
	cfg.CommercialKeywords = lowerAll(cfg.CommercialKeywords)
	cfg.ComprehensiveKeywords = lowerAll(cfg.ComprehensiveKeywords)
	r := &Rules{cfg: cfg}
	for _, k := range cfg.CommercialKeywords {
		if ws := words(k); len(ws) > 0 {
			r.commercial = append(r.commercial, ws)
		}
	}
	return r
}

// Default returns Rules with the default thresholds.
func Default() *Rules {
	return New(config.DefaultRules())
}

// Config returns the thresholds in effect.
func (r *Rules) Config() config.RulesConfig {
	return r.cfg
}

// IsCommercialUse reports whether the insured vehicle was in commercial use.
// A non-empty VehicleUse decides on its own; the loss description is read
// only when no use was recorded. Keywords match whole words, and a keyword
// right after "non", "not" or "no" does not count. In the description,
// keywords that follow "by", "with", "into" or "other" within three words
// describe the other vehicle and are skipped.
func (r *Rules) IsCommercialUse(c *types.ClaimInfo) bool {
	if strings.TrimSpace(c.VehicleUse) != "" {
		return mentions(words(c.VehicleUse), r.commercial, negated)
	}
	return mentions(words(c.LossDescription), r.commercial, func(prev []string) bool {
		return negated(prev) || otherParty(prev)
	})
}

// HasCommercialEndorsement reports whether the policy covers commercial use.
// An explicit flag on the claim wins over the declarations page.
func (r *Rules) HasCommercialEndorsement(c *types.ClaimInfo, decl *types.Declaration) bool {
	if c.CommercialEndorsement != nil {
		return *c.CommercialEndorsement
	}
	if decl == nil {
		return false
	}
	for _, e := range decl.Endorsements {
		if containsAny(e, endorsementKeywords) {
			return true
		}
	}
	return false
}

var endorsementKeywords = []string{"commercial", "rideshare", "ride-share", "delivery", "business use"}

// LossType returns the coverage the loss falls under.
func (r *Rules) LossType(c *types.ClaimInfo) string {
	if lt := strings.ToLower(strings.TrimSpace(c.LossType)); lt != "" {
		if strings.Contains(lt, LossComprehensive) {
			return LossComprehensive
		}
		return LossCollision
	}
	if containsAny(c.LossDescription, r.cfg.ComprehensiveKeywords) {
		return LossComprehensive
	}
	return LossCollision
}

// Deductible returns the deductible applicable to the claim: the claim's
// own value, then the declarations page, then the configured default.
func (r *Rules) Deductible(c *types.ClaimInfo, decl *types.Declaration) float64 {
	if c.Deductible != nil {
		return *c.Deductible
	}
	if r.LossType(c) == LossComprehensive {
		if decl != nil && decl.ComprehensiveDeductible > 0 {
			return decl.ComprehensiveDeductible
		}
		return r.cfg.ComprehensiveDeductible
	}
	if decl != nil && decl.CollisionDeductible > 0 {
		return decl.CollisionDeductible
	}
	return r.cfg.CollisionDeductible
}

// CollisionLimit returns the per-claim limit of liability.
func (r *Rules) CollisionLimit(decl *types.Declaration) float64 {
	if decl != nil && decl.CollisionLimit > 0 {
		return decl.CollisionLimit
	}
	return r.cfg.CollisionLimit
}

// RepairRatio returns repair cost divided by ACV. ok is false when the
// claim carries no ACV.
func (r *Rules) RepairRatio(c *types.ClaimInfo) (ratio float64, ok bool) {
	if c.ActualCashValue <= 0 {
		return 0, false
	}
	return c.EstimatedRepairCost / c.ActualCashValue, true
}

// IsTotalLoss reports whether repair cost reaches the total-loss share of ACV.
func (r *Rules) IsTotalLoss(c *types.ClaimInfo) bool {
	ratio, ok := r.RepairRatio(c)
	return ok && ratio >= r.cfg.TotalLossRatio
}

// --- helpers ---

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// keywordWindow is how many preceding words are checked for negations and
// other-party markers.
const keywordWindow = 3

var (
	negations    = []string{"non", "not", "no"}
	otherMarkers = []string{"by", "with", "into", "other", "another"}
)

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// mentions reports whether ws contains one of keywords as a whole-word
// sequence that skip does not discard. skip sees up to keywordWindow words
// before the match. A trailing plural "s" on the last word still matches.
func mentions(ws []string, keywords [][]string, skip func(prev []string) bool) bool {
	for i := range ws {
		for _, k := range keywords {
			if !matchAt(ws, i, k) {
				continue
			}
			if skip(ws[max(0, i-keywordWindow):i]) {
				continue
			}
			return true
		}
	}
	return false
}

func matchAt(ws []string, i int, k []string) bool {
	if i+len(k) > len(ws) {
		return false
	}
	last := len(k) - 1
	if !slices.Equal(ws[i:i+last], k[:last]) {
		return false
	}
	w := ws[i+last]
	return w == k[last] || w == k[last]+"s" || w == k[last]+"es"
}

func negated(prev []string) bool {
	return len(prev) > 0 && slices.Contains(negations, prev[len(prev)-1])
}

func otherParty(prev []string) bool {
	for _, w := range prev {
		if slices.Contains(otherMarkers, w) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
