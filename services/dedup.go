package services

import "nadlan-scraper/models"

// DedupIndex is the set of record hashes already collected for one entity.
// It belongs to a single crawl and is not safe for concurrent use.
type DedupIndex struct {
	seen map[string]struct{}
}

// NewDedupIndex seeds an index from a loaded snapshot, or starts empty when
// snap is nil. Hashes of the snapshot's records are always folded in, so
// snapshots written by older hash schemes still dedup correctly.
func NewDedupIndex(snap *models.Snapshot) *DedupIndex {
	idx := &DedupIndex{seen: make(map[string]struct{})}
	if snap == nil {
		return idx
	}
	for h := range snap.SeenHashes {
		idx.seen[h] = struct{}{}
	}
	for _, r := range snap.Records {
		idx.seen[r.Hash()] = struct{}{}
	}
	return idx
}

// Seen reports whether hash is already indexed.
func (d *DedupIndex) Seen(hash string) bool {
	_, ok := d.seen[hash]
	return ok
}

// Add indexes hash. Adding twice is a no-op.
func (d *DedupIndex) Add(hash string) {
	d.seen[hash] = struct{}{}
}

// Len returns the number of indexed hashes.
func (d *DedupIndex) Len() int {
	return len(d.seen)
}

// Hashes returns a copy of the indexed set, suitable for persisting.
func (d *DedupIndex) Hashes() map[string]struct{} {
	out := make(map[string]struct{}, len(d.seen))
	for h := range d.seen {
		out[h] = struct{}{}
	}
	return out
}
