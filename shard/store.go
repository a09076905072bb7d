// Package shard implements the ShardManager described in §4.9/§4.10: it
// routes inserts to an active shard, fans out searches across all shards,
// manages LRU residency against a pluggable key-value store, and performs
// batched persistence through the codec package.
package shard

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store's Read when key has no value. Store
// implementations should return an error for which errors.Is(err,
// ErrNotFound) holds; wrapping is fine.
var ErrNotFound = errors.New("shard: key not found")

// Store is the key-value contract a ShardManager persists shard images
// against (§4.11). All methods may fail; failures propagate to the caller
// of the triggering manager operation. Grounded on the teacher's
// blobstore.BlobStore / engine.Store[T] interfaces, collapsed to this
// spec's byte-oriented five-method shape.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}
