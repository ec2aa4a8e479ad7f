// Package types defines the records shared by the claimdesk packages:
// the inbound ClaimInfo, the four stage outputs (FNOLSummary,
// TriageDecision, FraudSignal, PolicyRecommendation), the final
// ClaimDecision and the Result envelope returned by the pipeline.
//
// Records carry snake_case JSON tags and go-playground/validator struct
// tags. Validate checks any record; LLM payloads are normalised (case of
// enum values, list lengths) before validation so small formatting
// differences do not force a fallback.
//
// ParseClaim and DecodeClaim accept the legacy field names used by older
// intake files (damage_amount, policyholder_name, date_of_incident,
// description, vehicle_value) and map them onto the current names.
package types
