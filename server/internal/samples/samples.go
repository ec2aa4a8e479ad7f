package samples

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/claimdesk/claimdesk/pkg/types"
)

//go:embed claims/*.json
var claimsFS embed.FS

// ErrUnknownSample is returned for a name with no embedded claim.
var ErrUnknownSample = errors.New("unknown sample")

// Names returns the sample names in sorted order.
func Names() []string {
	entries, err := fs.ReadDir(claimsFS, "claims")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Raw returns the JSON document of the named sample.
func Raw(name string) ([]byte, error) {
	name = strings.TrimSuffix(path.Base(name), ".json")
	b, err := claimsFS.ReadFile("claims/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSample, name)
	}
	return b, nil
}

// Load returns the named sample as a normalised claim.
func Load(name string) (*types.ClaimInfo, error) {
	b, err := Raw(name)
	if err != nil {
		return nil, err
	}
	c, err := types.ParseClaim(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("sample %q: %w", name, err)
	}
	return c, nil
}

// Sample is a named sample claim.
type Sample struct {
	Name  string           `json:"name"`
	Claim *types.ClaimInfo `json:"claim"`
}

// All loads every sample in name order.
func All() ([]Sample, error) {
	names := Names()
	out := make([]Sample, 0, len(names))
	for _, n := range names {
		c, err := Load(n)
		if err != nil {
			return nil, err
		}
		out = append(out, Sample{Name: n, Claim: c})
	}
	return out, nil
}
