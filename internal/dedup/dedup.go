// Package dedup tracks already-seen content within a single ingestion run.
// The persisted inbox is the long-lived seen set; this one only spans a run.
package dedup

import (
	"contentagent/internal/domain"
)

type seenKey struct {
	source     domain.Source
	originalID string
}

// Deduplicator holds an in-memory set of (source, original_id) keys.
// It does not survive process restarts; ingestion additionally checks the
// durable store's three-part natural keys.
type Deduplicator struct {
	seen map[seenKey]struct{}
}

// New returns an empty deduplicator scoped to one run.
func New() *Deduplicator {
	return &Deduplicator{seen: map[seenKey]struct{}{}}
}

// IsDuplicate reports whether the key was already seen, marking it seen as a
// side effect. The first check for a key returns false.
func (d *Deduplicator) IsDuplicate(source domain.Source, originalID string) bool {
	key := seenKey{source: source, originalID: originalID}
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// FilterDuplicates drops records already seen, either before this call or
// earlier in the same batch. First occurrence wins; order is preserved.
func (d *Deduplicator) FilterDuplicates(items []domain.InboxRecord) []domain.InboxRecord {
	unique := make([]domain.InboxRecord, 0, len(items))
	for _, item := range items {
		key := seenKey{source: item.Source, originalID: item.OriginalID}
		if _, ok := d.seen[key]; ok {
			continue
		}
		d.seen[key] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

// MarkAsSeen registers keys for known-processed records without storing them.
func (d *Deduplicator) MarkAsSeen(items []domain.InboxRecord) {
	for _, item := range items {
		d.seen[seenKey{source: item.Source, originalID: item.OriginalID}] = struct{}{}
	}
}

// Reset clears all seen keys.
func (d *Deduplicator) Reset() {
	d.seen = map[seenKey]struct{}{}
}

// Len returns the number of tracked keys.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}
