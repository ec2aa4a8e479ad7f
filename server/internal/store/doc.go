// Package store keeps processed claims in memory, keyed by claim number.
// It supports filtered, sorted and paged listing for the adjuster queue,
// records adjuster overrides alongside the original pipeline decision, and
// evicts records older than the configured retention.
package store
