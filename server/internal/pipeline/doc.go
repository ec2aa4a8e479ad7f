// Package pipeline evaluates a claim in four stages:
//
//  1. FNOL: summarise the First Notice of Loss and rate its severity.
//  2. Triage: pick a priority, an adjuster team and a target SLA.
//  3. Fraud: score the fraud risk and decide on an SIU referral.
//  4. Coverage: generate policy queries, retrieve the policy text and the
//     declarations page, recommend a settlement and apply the guardrails.
//
// Each stage asks the LLM first when one is configured. Any error, from the
// network to a payload that fails validation, falls back to the rule output
// for that stage only. Without an LLM every stage runs on rules and the
// pipeline makes no network call, so repeated runs return the same result.
//
// The guardrails in package rules always run after the coverage stage and
// cannot be overridden by the model.
package pipeline
