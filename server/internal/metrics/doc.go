// Package metrics renders the claims KPIs in the Prometheus text exposition
// format for GET /metrics.
//
// Families builds the metric families from a kpi.Summary plus live gauges
// (alerts firing, inspections pending); Write encodes them with expfmt.
// All metric names carry the claimdesk_ prefix.
package metrics
