package policy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/claimdesk/claimdesk/pkg/types"
)

//go:embed data/declarations.yaml
var defaultDeclarations []byte

// Declarations indexes declarations pages by policy number.
type Declarations struct {
	byNumber map[string]*types.Declaration
}

type declarationsFile struct {
	Policies []types.Declaration `yaml:"policies"`
}

// ParseDeclarations decodes a declarations yaml document.
func ParseDeclarations(data []byte) (*Declarations, error) {
	var f declarationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("policy: parse declarations: %w", err)
	}
	d := &Declarations{byNumber: make(map[string]*types.Declaration, len(f.Policies))}
	for i := range f.Policies {
		p := f.Policies[i]
		if p.PolicyNumber == "" {
			return nil, fmt.Errorf("policy: declarations[%d]: policy_number is required", i)
		}
		d.byNumber[strings.ToUpper(p.PolicyNumber)] = &p
	}
	return d, nil
}

// LoadDeclarations reads a declarations yaml file.
func LoadDeclarations(path string) (*Declarations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read declarations %q: %w", path, err)
	}
	return ParseDeclarations(data)
}

// DefaultDeclarations returns the embedded demo declarations.
func DefaultDeclarations() *Declarations {
	d, err := ParseDeclarations(defaultDeclarations)
	if err != nil {
		panic(err)
	}
	return d
}

// Lookup returns a copy of the declarations page for policyNumber, or nil.
// A nil receiver has no policies.
func (d *Declarations) Lookup(policyNumber string) *types.Declaration {
	if d == nil {
		return nil
	}
	p, ok := d.byNumber[strings.ToUpper(strings.TrimSpace(policyNumber))]
	if !ok {
		return nil
	}
	cp := *p
	cp.Endorsements = append([]string(nil), p.Endorsements...)
	return &cp
}

// Len returns the number of policies on file.
func (d *Declarations) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byNumber)
}

// DeclarationChunk renders a declarations page as retrievable text.
func DeclarationChunk(d *types.Declaration) Chunk {
	endorsements := "None"
	if len(d.Endorsements) > 0 {
		endorsements = strings.Join(d.Endorsements, "; ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DECLARATIONS PAGE\nPolicy Number: %s\nNamed Insured: %s\nState: %s\n", d.PolicyNumber, d.Holder, d.State)
	fmt.Fprintf(&b, "Collision deductible: $%.0f\nComprehensive deductible: $%.0f\n", d.CollisionDeductible, d.ComprehensiveDeductible)
	if d.CollisionLimit > 0 {
		fmt.Fprintf(&b, "Collision limit: $%.0f\n", d.CollisionLimit)
	}
	fmt.Fprintf(&b, "Endorsements: %s", endorsements)
	return Chunk{
		ID:     "declarations-" + strings.ToLower(d.PolicyNumber),
		Title:  "Declarations " + d.PolicyNumber,
		Text:   b.String(),
		Source: "declarations",
	}
}
