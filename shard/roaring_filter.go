package shard

import (
	"hash/fnv"

	"github.com/RoaringBitmap/roaring/v2"
)

// RoaringFilter builds a Search filter predicate from a compact set of
// allowed external ids, backed by a Roaring Bitmap over each id's FNV-32a
// hash rather than a map[string]bool. Intended for filters with large
// cardinality, where a bitmap's run-length compression beats a Go map's
// per-entry overhead. Grounded on the teacher's metadata.LocalBitmap.
type RoaringFilter struct {
	rb *roaring.Bitmap
}

// NewRoaringFilter builds a RoaringFilter admitting exactly the ids given.
func NewRoaringFilter(ids ...string) *RoaringFilter {
	f := &RoaringFilter{rb: roaring.New()}
	for _, id := range ids {
		f.Add(id)
	}
	return f
}

// Add admits id.
func (f *RoaringFilter) Add(id string) {
	f.rb.Add(hashID(id))
}

// Remove revokes id, if present.
func (f *RoaringFilter) Remove(id string) {
	f.rb.Remove(hashID(id))
}

// Contains reports whether id is admitted. Because the bitmap stores
// hashes rather than ids, this can false-positive on a hash collision;
// callers needing exactness should pair RoaringFilter with their own exact
// set and use this only as a coarse pre-filter.
func (f *RoaringFilter) Contains(id string) bool {
	return f.rb.Contains(hashID(id))
}

// Cardinality returns the number of distinct hashes admitted.
func (f *RoaringFilter) Cardinality() uint64 {
	return f.rb.GetCardinality()
}

// Predicate returns a func(string) bool suitable for shard.WithFilter or
// hnsw.WithFilter.
func (f *RoaringFilter) Predicate() func(string) bool {
	return f.Contains
}

// And restricts f to ids also admitted by other.
func (f *RoaringFilter) And(other *RoaringFilter) {
	f.rb.And(other.rb)
}

// Or expands f to include every id admitted by other.
func (f *RoaringFilter) Or(other *RoaringFilter) {
	f.rb.Or(other.rb)
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}
