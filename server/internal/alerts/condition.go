package alerts

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/claimdesk/claimdesk/pkg/types"
)

// Variables available to rule conditions. Each is the JSON form of the
// matching record, so field names follow the API, e.g.
//
//	fraud.siu_referral
//	decision.recommended_payout > 10000.0
//	triage.priority == "Immediate" && claim.injuries_reported
//	decision.outcome == "total_loss"
var conditionVars = []string{"claim", "decision", "triage", "fraud", "fnol"}

var conditionEnv = mustEnv()

func mustEnv() *cel.Env {
	opts := []cel.EnvOption{cel.CrossTypeNumericComparisons(true)}
	for _, v := range conditionVars {
		opts = append(opts, cel.Variable(v, cel.MapType(cel.StringType, cel.DynType)))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		panic(fmt.Sprintf("alerts: build CEL environment: %v", err))
	}
	return env
}

// compileCondition parses and type-checks a rule condition.
func compileCondition(expr string) (cel.Program, error) {
	ast, issues := conditionEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("condition %q returns %s, want bool", expr, out)
	}
	prg, err := conditionEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return prg, nil
}

// activation builds the condition variables for one claim.
func activation(c *types.ClaimInfo, res *types.Result) (map[string]any, error) {
	parts := map[string]any{
		"claim":    c,
		"decision": &res.Decision,
		"triage":   &res.Triage,
		"fraud":    &res.FraudSignal,
		"fnol":     &res.FNOLSummary,
	}
	vars := make(map[string]any, len(parts))
	for name, v := range parts {
		m, err := toMap(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		vars[name] = m
	}
	return vars, nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// evalCondition runs prg. A missing field or a non-bool result is an error.
func evalCondition(prg cel.Program, vars map[string]any) (bool, error) {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out.Value())
	}
	return b, nil
}
