// Package alerts evaluates alert rules against every processed claim and
// delivers webhook notifications to Slack, Teams or generic HTTP targets.
//
// Rule conditions are CEL expressions over the claim and the pipeline
// records (claim, decision, triage, fraud, fnol). An alert is keyed by rule
// and claim; it fires once per cooldown and resolves when the condition no
// longer holds on reprocessing or when an adjuster overrides the decision.
package alerts
