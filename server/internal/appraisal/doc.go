// Package appraisal manages physical inspections. Claims triaged to a field
// adjuster are queued automatically; an appraiser is assigned and
// scheduled, then submits photos, damaged areas and a repair estimate. The
// estimate is called a repair or a total loss against the configured share
// of the vehicle value (75% by default).
package appraisal
