// Package api implements the claimdesk HTTP REST API.
//
// New(cfg) returns an http.Handler that serves:
//
//	GET  /api/v1/health                        service status and pipeline mode
//	POST /api/v1/claims/process                run one claim {claim_data, use_agentic_mode}
//	POST /api/v1/claims/batch                  run claims in parallel {claims, use_agentic_mode}
//	GET  /api/v1/claims                        list; priority, covered, sort, limit, offset
//	GET  /api/v1/claims/{id}                   one processed claim with review hints
//	POST /api/v1/claims/{id}/override          adjuster override {action, reason, adjuster, payout}
//	GET  /api/v1/metrics                       KPIs as JSON
//	GET  /api/v1/alerts                        firing and recently resolved alerts
//	GET  /api/v1/policy/search                 policy sections for q (k results)
//	GET  /api/v1/samples                       bundled sample claims
//	POST /api/v1/samples/{name}/process        run a sample claim
//	GET  /api/v1/inspections                   pending appraisals
//	POST /api/v1/inspections                   queue an appraisal {claim_number}
//	POST /api/v1/inspections/{id}/assign       schedule {appraiser, date}
//	POST /api/v1/inspections/{id}/assessment   complete with an assessment
//	GET  /api/v1/inspections/completed         completed appraisals and summary
//	GET  /api/v1/dashboard                     KPIs, work queue, alerts, inspections
//	GET  /metrics                              Prometheus text exposition
//
// Every endpoint except /metrics responds with application/json and returns
// 405 for unsupported methods. Malformed bodies are 400, invalid claims 422,
// unknown ids 404 and pipeline failures 500.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
