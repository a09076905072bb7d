package shard

import "fmt"

// DuplicateID reports an insert whose external id is already routed to a
// shard, mirroring hnsw.DuplicateID but scoped to the manager's global map.
type DuplicateID struct {
	ID string
}

func (e *DuplicateID) Error() string {
	return fmt.Sprintf("shard: duplicate external id %q", e.ID)
}

// ShardNotLoaded is returned when a referenced shard is not resident and no
// store is configured to load it from.
type ShardNotLoaded struct {
	Shard string
}

func (e *ShardNotLoaded) Error() string {
	return fmt.Sprintf("shard: %s is not loaded and no store is configured", e.Shard)
}

// ShardMissing is returned when the store has no value for a referenced key.
type ShardMissing struct {
	Shard string
}

func (e *ShardMissing) Error() string {
	return fmt.Sprintf("shard: %s not found in store", e.Shard)
}

// StorageFailure wraps any underlying Store call failure.
type StorageFailure struct {
	Shard string
	Cause error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("shard: storage failure on %s: %v", e.Shard, e.Cause)
}

func (e *StorageFailure) Unwrap() error { return e.Cause }

// NotOpenable is returned by Open when neither a store nor a dimension was
// supplied, so the manager has no way to determine shard configuration.
type NotOpenable struct{}

func (e *NotOpenable) Error() string {
	return "shard: cannot open manager without either a store or a dimension"
}
