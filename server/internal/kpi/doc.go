// Package kpi computes the claims operation KPIs shown on the dashboard and
// exported as metrics: volume, processing time, fraud referral, approval
// and total-loss rates, overrides and SLA by priority.
package kpi
