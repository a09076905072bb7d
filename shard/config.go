package shard

import (
	"github.com/nnvec/hnswdb/hnsw"
	"github.com/nnvec/hnswdb/internal/logging"
)

const (
	defaultMaxVectorsPerShard = 100_000
	defaultMaxLoadedShards    = 4
)

type config struct {
	dim                int
	maxVectorsPerShard int
	maxLoadedShards    int
	store              Store
	logger             *logging.Logger
	hnswOpts           []hnsw.Option
}

// Option configures a Manager at construction time.
type Option func(*config)

// WithDimension sets the vector dimension. Open uses it when the store holds
// no shard to take the dimension from, or when no store is configured.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithMaxVectorsPerShard caps the number of vectors routed to a single
// shard before the manager rolls over to a new one. Default 100,000.
func WithMaxVectorsPerShard(n int) Option {
	return func(c *config) { c.maxVectorsPerShard = n }
}

// WithMaxLoadedShards bounds the number of shards kept resident in memory
// at once. Default 4.
func WithMaxLoadedShards(n int) Option {
	return func(c *config) { c.maxLoadedShards = n }
}

// WithStore attaches the key-value backend shards are persisted to and
// loaded from. A nil store (the default) makes the manager memory-only:
// Insert/Search/Delete work, Flush is a no-op, LoadFromStorage fails with
// ShardNotLoaded, and eviction drops a dirty shard without writing it, after
// which that shard's vectors are gone and loading it fails with
// ShardNotLoaded.
func WithStore(s Store) Option {
	return func(c *config) { c.store = s }
}

// WithLogger attaches a structured logger used for insert/search/flush/evict
// narration.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithIndexOptions threads hnsw.Option values through to every shard's
// hnsw.New call, so M/efConstruction/efSearch/metric/seed/heuristic
// settings are shared uniformly across shards.
func WithIndexOptions(opts ...hnsw.Option) Option {
	return func(c *config) { c.hnswOpts = append(c.hnswOpts, opts...) }
}

func applyOptions(dim int, optFns []Option) config {
	c := config{
		dim:                dim,
		maxVectorsPerShard: defaultMaxVectorsPerShard,
		maxLoadedShards:    defaultMaxLoadedShards,
		logger:             logging.Noop(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&c)
		}
	}
	if c.maxVectorsPerShard <= 0 {
		c.maxVectorsPerShard = defaultMaxVectorsPerShard
	}
	if c.maxLoadedShards <= 0 {
		c.maxLoadedShards = defaultMaxLoadedShards
	}
	if c.logger == nil {
		c.logger = logging.Noop()
	}
	return c
}
