package llm

import "google.golang.org/genai"

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func strList(desc string, max int64) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: desc,
		Items:       &genai.Schema{Type: genai.TypeString},
		MaxItems:    genai.Ptr(max),
	}
}

func object(required []string, props map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         required,
		PropertyOrdering: required,
	}
}

// Response schemas of the pipeline stages.
var (
	FNOLSchema = object(
		[]string{"incident_summary", "impact_assessment", "severity_level", "recommended_actions"},
		map[string]*genai.Schema{
			"incident_summary":  str("One or two sentences describing what happened."),
			"impact_assessment": str("Vehicle and human impact."),
			"severity_level": {
				Type: genai.TypeString,
				Enum: []string{"Low", "Medium", "High"},
			},
			"recommended_actions": strList("Next steps for the carrier.", 6),
		},
	)

	TriageSchema = object(
		[]string{"priority", "assignment", "rationale", "target_sla_hours"},
		map[string]*genai.Schema{
			"priority": {
				Type: genai.TypeString,
				Enum: []string{"Immediate", "High", "Standard", "Low"},
			},
			"assignment":       str("Adjuster team, e.g. Field adjuster, Desk adjuster, Express lane."),
			"rationale":        str("One or two sentences."),
			"target_sla_hours": {Type: genai.TypeInteger, Minimum: genai.Ptr(1.0)},
		},
	)

	FraudSchema = object(
		[]string{"risk_score", "flags", "recommendation"},
		map[string]*genai.Schema{
			"risk_score": {
				Type:    genai.TypeNumber,
				Minimum: genai.Ptr(0.0),
				Maximum: genai.Ptr(1.0),
			},
			"flags":          strList("At most three fraud indicators.", 3),
			"recommendation": str("SIU recommendation."),
		},
	)

	QueriesSchema = object(
		[]string{"queries"},
		map[string]*genai.Schema{
			"queries": strList("Three to five policy search queries.", 5),
		},
	)

	RecommendationSchema = object(
		[]string{"policy_section", "recommendation_summary", "deductible", "settlement_amount"},
		map[string]*genai.Schema{
			"policy_section":         str("The policy section that applies."),
			"recommendation_summary": str("Coverage finding and recommended settlement."),
			"deductible":             {Type: genai.TypeNumber, Minimum: genai.Ptr(0.0)},
			"settlement_amount":      {Type: genai.TypeNumber, Minimum: genai.Ptr(0.0)},
		},
	)
)
