// Package doctor runs preflight checks against a claimdesk configuration:
// authentication posture, model credentials, cache reachability, alert rule
// compilation and the TLS certificates of webhook endpoints.
//
// Checks never change state. Each produces a Finding with one of three
// statuses; the CLI exits non-zero when any check fails.
package doctor
