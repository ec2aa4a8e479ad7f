package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/claimdesk/claimdesk/pkg/types"
)

var (
	// ErrNoJSON is returned when a model response carries no JSON object or array.
	ErrNoJSON = errors.New("llm: response lacked JSON payload")

	// ErrUnavailable is returned when no API key is configured.
	ErrUnavailable = errors.New("llm: client not configured")
)

// Client generates a JSON document for a prompt. Implementations must be
// safe for concurrent use.
type Client interface {
	// GenerateJSON returns the raw model text for prompt. schema, when
	// non-nil, constrains the response shape.
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) ([]byte, error)

	// Name identifies the backend and model, e.g. "gemini:gemini-2.5-flash".
	Name() string
}

var jsonBlock = regexp.MustCompile(`(\{[\s\S]*\}|\[[\s\S]*\])`)

// ExtractJSON returns the JSON payload embedded in model text. A leading
// markdown fence is stripped; the first '{' or '[' through the last
// matching bracket is returned.
func ExtractJSON(text string) (string, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) >= 2 {
			lines = lines[1:]
			if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
				lines = lines[:len(lines)-1]
			}
		}
		cleaned = strings.Join(lines, "\n")
	}
	m := jsonBlock.FindString(cleaned)
	if m == "" {
		return "", ErrNoJSON
	}
	return m, nil
}

// normalizer is implemented by stage records that canonicalise model output.
type normalizer interface {
	Normalize()
}

// Predict asks c for a T and validates the answer.
func Predict[T any](ctx context.Context, c Client, prompt string, schema *genai.Schema) (T, error) {
	var out T
	raw, err := c.GenerateJSON(ctx, prompt, schema)
	if err != nil {
		return out, err
	}
	payload, err := ExtractJSON(string(raw))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("llm: decode %T: %w", out, err)
	}
	if n, ok := any(&out).(normalizer); ok {
		n.Normalize()
	}
	if err := types.Validate(&out); err != nil {
		return out, fmt.Errorf("llm: %T: %w: %v", out, types.ErrInvalidRecord, err)
	}
	return out, nil
}
