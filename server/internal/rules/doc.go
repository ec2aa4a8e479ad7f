// Package rules holds the deterministic claim logic: the fallback output of
// every pipeline stage and the guardrails applied to the final decision.
//
// Guard enforces, in order: commercial use without endorsement is denied;
// a repair estimate at or above total_loss_ratio of ACV is a total loss paid
// at ACV less deductible; an estimate at or above the collision limit is
// denied. Paid claims where the insured carries 0% fault and an identified,
// insured other party exists get a subrogation recommendation once the
// payout exceeds subrogation_min_payout.
//
// The fallback fraud score is a weighted sum of binary factors over a base
// risk; see Fraud.
package rules
