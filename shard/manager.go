package shard

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nnvec/hnswdb/codec"
	"github.com/nnvec/hnswdb/hnsw"
)

// keyPattern matches the shard key namespace from §6: "shard-NNNNNN".
var keyPattern = regexp.MustCompile(`^shard-\d{6}$`)

// maxConcurrentLoads bounds how many shard loads LoadFromStorage runs at
// once, so a collection with many shards does not open unbounded
// concurrent store reads (§4.9's note on parallel fan-in).
const maxConcurrentLoads = 8

type residentShard struct {
	index      *hnsw.Index
	dirty      bool
	lastAccess uint64
}

// Manager orchestrates many hnsw.Index shards: it routes inserts to the
// active shard, fans out searches and merges top-k, manages LRU residency
// against a pluggable Store, and performs batched persistence. Grounded on
// the teacher's ShardedCoordinator (engine/sharded.go), generalized from
// hash-routed multi-writer shards to this spec's single-active-shard LRU
// model, and on blobstore's BlobStore contract for the Store interface.
type Manager struct {
	cfg config

	mu         chan struct{} // binary semaphore; see lock/unlock helpers
	shardKeys  []string
	resident   map[string]*residentShard
	extToShard map[string]string
	activeKey  string
	activeSize int
	tick       uint64
}

func (m *Manager) lock()   { m.mu <- struct{}{} }
func (m *Manager) unlock() { <-m.mu }

// NewManager constructs an empty Manager over vectors of dimension dim.
func NewManager(dim int, optFns ...Option) (*Manager, error) {
	if dim <= 0 {
		return nil, hnsw.ErrInvalidDimension
	}
	return newManager(applyOptions(dim, optFns)), nil
}

// Open constructs a Manager from an existing Store, rebuilding its global
// state via LoadFromStorage. dim (see WithDimension) may be omitted if the
// store already holds at least one shard; otherwise, with neither a store
// nor a dimension supplied, Open fails with NotOpenable.
func Open(ctx context.Context, optFns ...Option) (*Manager, error) {
	cfg := applyOptions(0, optFns)
	if cfg.store == nil && cfg.dim <= 0 {
		return nil, &NotOpenable{}
	}
	m := newManager(cfg)
	if cfg.store != nil {
		if err := m.LoadFromStorage(ctx); err != nil {
			return nil, err
		}
	}
	if m.cfg.dim <= 0 {
		return nil, &NotOpenable{}
	}
	return m, nil
}

func newManager(cfg config) *Manager {
	m := &Manager{
		cfg:        cfg,
		mu:         make(chan struct{}, 1),
		resident:   make(map[string]*residentShard),
		extToShard: make(map[string]string),
	}
	return m
}

// Dim returns the manager's vector dimension.
func (m *Manager) Dim() int { return m.cfg.dim }

func (m *Manager) nextTickLocked() uint64 {
	m.tick++
	return m.tick
}

// Insert routes ext_id/vector to the active shard, creating a new shard if
// there is none or the active one is full (§4.9).
func (m *Manager) Insert(ctx context.Context, extID string, vector []float32) error {
	if len(vector) != m.cfg.dim {
		return &hnsw.DimensionMismatch{Expected: m.cfg.dim, Actual: len(vector)}
	}

	m.lock()
	if _, exists := m.extToShard[extID]; exists {
		m.unlock()
		return &DuplicateID{ID: extID}
	}
	needNewShard := m.activeKey == "" || m.activeSize >= m.cfg.maxVectorsPerShard
	m.unlock()

	if needNewShard {
		if err := m.createShard(ctx); err != nil {
			m.cfg.logger.LogInsert(ctx, "", extID, err)
			return err
		}
	}

	m.lock()
	activeKey := m.activeKey
	m.unlock()

	rs, err := m.ensureLoaded(ctx, activeKey)
	if err != nil {
		m.cfg.logger.LogInsert(ctx, activeKey, extID, err)
		return err
	}

	if err := rs.index.Insert(extID, vector); err != nil {
		m.cfg.logger.LogInsert(ctx, activeKey, extID, err)
		return err
	}

	m.lock()
	rs.dirty = true
	m.extToShard[extID] = activeKey
	m.activeSize++
	m.unlock()

	m.cfg.logger.LogInsert(ctx, activeKey, extID, nil)
	return nil
}

// createShard allocates the next shard-NNNNNN key, makes it the active
// shard with a fresh empty Index, and runs eviction.
func (m *Manager) createShard(ctx context.Context) error {
	m.lock()
	key := fmt.Sprintf("shard-%06d", len(m.shardKeys))
	idx, err := hnsw.New(m.cfg.dim, m.cfg.hnswOpts...)
	if err != nil {
		m.unlock()
		return err
	}
	m.shardKeys = append(m.shardKeys, key)
	m.resident[key] = &residentShard{index: idx, dirty: true, lastAccess: m.nextTickLocked()}
	m.activeKey = key
	m.activeSize = 0
	m.unlock()

	return m.runEviction(ctx)
}

// ensureLoaded returns the resident shard for key, loading it from the
// store if it is not already resident. Concurrent callers racing to load
// the same key converge on a single decoded Index.
func (m *Manager) ensureLoaded(ctx context.Context, key string) (*residentShard, error) {
	m.lock()
	if rs, ok := m.resident[key]; ok {
		rs.lastAccess = m.nextTickLocked()
		m.unlock()
		return rs, nil
	}
	store := m.cfg.store
	m.unlock()

	if store == nil {
		return nil, &ShardNotLoaded{Shard: key}
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ShardMissing{Shard: key}
		}
		return nil, &StorageFailure{Shard: key, Cause: err}
	}
	idx, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}

	m.lock()
	if existing, ok := m.resident[key]; ok {
		existing.lastAccess = m.nextTickLocked()
		m.unlock()
		return existing, nil
	}
	rs := &residentShard{index: idx, dirty: false, lastAccess: m.nextTickLocked()}
	m.resident[key] = rs
	m.unlock()

	m.cfg.logger.LogLoad(ctx, key, idx.Size(), nil)

	if err := m.runEviction(ctx); err != nil {
		return nil, err
	}
	return rs, nil
}

// runEviction drops resident shards down to MaxLoadedShards, LRU-first,
// flushing dirty victims before dropping them (§4.10). Stops early if only
// the active shard remains resident.
func (m *Manager) runEviction(ctx context.Context) error {
	for {
		m.lock()
		if len(m.resident) <= m.cfg.maxLoadedShards {
			m.unlock()
			return nil
		}
		victimKey := ""
		var minTick uint64
		first := true
		for k, rs := range m.resident {
			if k == m.activeKey {
				continue
			}
			if first || rs.lastAccess < minTick {
				minTick = rs.lastAccess
				victimKey = k
				first = false
			}
		}
		if victimKey == "" {
			m.unlock()
			return nil
		}
		rs := m.resident[victimKey]
		dirty := rs.dirty
		idx := rs.index
		m.unlock()

		if dirty && m.cfg.store != nil {
			data := codec.Encode(idx)
			if err := m.cfg.store.Write(ctx, victimKey, data); err != nil {
				err = &StorageFailure{Shard: victimKey, Cause: err}
				m.cfg.logger.LogEvict(ctx, victimKey, dirty, err)
				return err
			}
		}

		m.lock()
		delete(m.resident, victimKey)
		m.unlock()
		m.cfg.logger.LogEvict(ctx, victimKey, dirty, nil)
	}
}

// SearchOptions configures a single Search call.
type SearchOptions struct {
	EfOverride     int
	Filter         func(string) bool
	IncludeVectors bool
}

// SearchOption configures a single Search call.
type SearchOption func(*SearchOptions)

// WithEfOverride sets the beam width passed through to every shard's
// Search call.
func WithEfOverride(ef int) SearchOption {
	return func(o *SearchOptions) { o.EfOverride = ef }
}

// WithFilter restricts emitted results across all shards to external ids
// for which fn returns true.
func WithFilter(fn func(string) bool) SearchOption {
	return func(o *SearchOptions) { o.Filter = fn }
}

// WithIncludeVectors attaches the stored vector to each merged result.
func WithIncludeVectors(include bool) SearchOption {
	return func(o *SearchOptions) { o.IncludeVectors = include }
}

func resolveSearchOptions(optFns []SearchOption) SearchOptions {
	var o SearchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Result is one merged cross-shard neighbor.
type Result struct {
	ID       string
	Distance float32
	Vector   []float32 // nil unless WithIncludeVectors was set
}

// Search converts query to the canonical representation, fans out to every
// known shard key (loading non-resident ones from the store), and merges
// per-shard top-k results by ascending distance, breaking ties by the
// order shards appear in (§4.9).
func (m *Manager) Search(ctx context.Context, query []float32, k int, optFns ...SearchOption) ([]Result, error) {
	if len(query) != m.cfg.dim {
		return nil, &hnsw.DimensionMismatch{Expected: m.cfg.dim, Actual: len(query)}
	}
	if k <= 0 {
		return nil, hnsw.ErrInvalidK
	}

	m.lock()
	keys := append([]string(nil), m.shardKeys...)
	m.unlock()

	perShard := make([][]hnsw.Result, len(keys))
	perShardIndex := make([]*hnsw.Index, len(keys))

	cfg := resolveSearchOptions(optFns)

	eg, egctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		eg.Go(func() error {
			rs, err := m.ensureLoaded(egctx, key)
			if err != nil {
				return err
			}
			var opts []hnsw.SearchOption
			if cfg.EfOverride > 0 {
				opts = append(opts, hnsw.WithEfOverride(cfg.EfOverride))
			}
			if cfg.Filter != nil {
				opts = append(opts, hnsw.WithFilter(cfg.Filter))
			}
			res, err := rs.index.Search(query, k, opts...)
			if err != nil {
				return err
			}
			perShard[i] = res
			perShardIndex[i] = rs.index
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		m.cfg.logger.LogSearch(ctx, k, len(keys), 0, err)
		return nil, err
	}

	type tagged struct {
		hnsw.Result
		shardIdx int
	}
	var all []tagged
	for i, res := range perShard {
		for _, r := range res {
			all = append(all, tagged{r, i})
		}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].Distance < all[b].Distance })
	if len(all) > k {
		all = all[:k]
	}

	out := make([]Result, len(all))
	for i, t := range all {
		out[i] = Result{ID: t.ID, Distance: t.Distance}
		if cfg.IncludeVectors {
			if v, ok := perShardIndex[t.shardIdx].GetVector(t.ID); ok {
				out[i].Vector = v
			}
		}
	}
	m.cfg.logger.LogSearch(ctx, k, len(keys), len(out), nil)
	return out, nil
}

// Delete looks up ext_id's owning shard and tombstones it there.
func (m *Manager) Delete(ctx context.Context, extID string) (bool, error) {
	m.lock()
	key, ok := m.extToShard[extID]
	m.unlock()
	if !ok {
		return false, nil
	}

	rs, err := m.ensureLoaded(ctx, key)
	if err != nil {
		return false, err
	}

	if !rs.index.Delete(extID) {
		return false, nil
	}

	m.lock()
	rs.dirty = true
	delete(m.extToShard, extID)
	if key == m.activeKey {
		m.activeSize--
	}
	m.unlock()
	return true, nil
}

// Flush writes every resident dirty shard to the store in parallel,
// clearing its dirty flag only once the write acknowledges.
func (m *Manager) Flush(ctx context.Context) error {
	if m.cfg.store == nil {
		return nil
	}

	type dirtyShard struct {
		key string
		idx *hnsw.Index
	}
	m.lock()
	var dirty []dirtyShard
	for k, rs := range m.resident {
		if rs.dirty {
			dirty = append(dirty, dirtyShard{k, rs.index})
		}
	}
	m.unlock()

	eg, _ := errgroup.WithContext(ctx)
	for _, d := range dirty {
		d := d
		eg.Go(func() error {
			data := codec.Encode(d.idx)
			if err := m.cfg.store.Write(ctx, d.key, data); err != nil {
				err = &StorageFailure{Shard: d.key, Cause: err}
				m.cfg.logger.LogFlush(ctx, d.key, len(data), err)
				return err
			}
			m.lock()
			if rs, ok := m.resident[d.key]; ok {
				rs.dirty = false
			}
			m.unlock()
			m.cfg.logger.LogFlush(ctx, d.key, len(data), nil)
			return nil
		})
	}
	return eg.Wait()
}

// Compact replaces every shard's Index with its compacted form, reclaiming
// tombstoned slots. Loads non-resident shards as needed but does not flush.
func (m *Manager) Compact(ctx context.Context) error {
	m.lock()
	keys := append([]string(nil), m.shardKeys...)
	m.unlock()

	eg, egctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		eg.Go(func() error {
			rs, err := m.ensureLoaded(egctx, key)
			if err != nil {
				return err
			}
			fresh, err := rs.index.Compact()
			if err != nil {
				return err
			}
			m.lock()
			rs.index = fresh
			rs.dirty = true
			m.unlock()
			return nil
		})
	}
	return eg.Wait()
}

// Close flushes every dirty resident shard and drops resident state.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.Flush(ctx); err != nil {
		return err
	}
	m.lock()
	m.resident = make(map[string]*residentShard)
	m.unlock()
	return nil
}

// LoadFromStorage enumerates the store's keys, sorts them lexicographically
// (shard-NNNNNN is order-preserving), decodes each to rebuild the global
// ext->shard map, and fills the resident map up to MaxLoadedShards with the
// most recent shards. The last shard key becomes the active one.
func (m *Manager) LoadFromStorage(ctx context.Context) error {
	if m.cfg.store == nil {
		return &ShardNotLoaded{Shard: "*"}
	}

	allKeys, err := m.cfg.store.List(ctx)
	if err != nil {
		return &StorageFailure{Shard: "*", Cause: err}
	}
	keys := make([]string, 0, len(allKeys))
	for _, k := range allKeys {
		if keyPattern.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	decoded := make([]*hnsw.Index, len(keys))
	sem := semaphore.NewWeighted(maxConcurrentLoads)
	eg, egctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		eg.Go(func() error {
			if err := sem.Acquire(egctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			data, err := m.cfg.store.Read(egctx, key)
			if err != nil {
				return &StorageFailure{Shard: key, Cause: err}
			}
			idx, err := codec.Decode(data)
			if err != nil {
				return err
			}
			decoded[i] = idx
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	m.lock()
	defer m.unlock()

	m.shardKeys = keys
	m.resident = make(map[string]*residentShard, len(keys))
	m.extToShard = make(map[string]string)

	for i, key := range keys {
		idx := decoded[i]
		idx.Iterate(func(extID string, _ []float32) bool {
			m.extToShard[extID] = key
			return true
		})
	}

	start := 0
	if len(keys) > m.cfg.maxLoadedShards {
		start = len(keys) - m.cfg.maxLoadedShards
	}
	for i := start; i < len(keys); i++ {
		m.resident[keys[i]] = &residentShard{index: decoded[i], dirty: false, lastAccess: m.nextTickLocked()}
	}

	if len(keys) > 0 {
		last := len(keys) - 1
		m.activeKey = keys[last]
		m.activeSize = decoded[last].Size()
		if m.cfg.dim <= 0 {
			m.cfg.dim = decoded[last].Dim()
		}
	} else {
		m.activeKey = ""
		m.activeSize = 0
	}

	return nil
}

// Stats reports per-shard residency/dirtiness/size and the global live
// count, for observability (§ supplemented features).
type Stats struct {
	ShardCount    int
	ResidentCount int
	LiveCount     int
	DirtyCount    int
	Shards        []ShardStats
}

// ShardStats is one shard's entry in Stats.Shards.
type ShardStats struct {
	Key      string
	Resident bool
	Dirty    bool
	Size     int
}

// Stats returns a snapshot of the manager's current shard residency and
// sizes.
func (m *Manager) Stats() Stats {
	m.lock()
	defer m.unlock()

	s := Stats{
		ShardCount:    len(m.shardKeys),
		ResidentCount: len(m.resident),
		LiveCount:     len(m.extToShard),
		Shards:        make([]ShardStats, 0, len(m.shardKeys)),
	}
	// Sizes come from the global ext->shard map so that shards evicted from
	// memory still report their live count.
	sizes := make(map[string]int, len(m.shardKeys))
	for _, key := range m.extToShard {
		sizes[key]++
	}
	for _, key := range m.shardKeys {
		ss := ShardStats{Key: key, Size: sizes[key]}
		if rs, ok := m.resident[key]; ok {
			ss.Resident = true
			ss.Dirty = rs.dirty
			if rs.dirty {
				s.DirtyCount++
			}
		}
		s.Shards = append(s.Shards, ss)
	}
	return s
}
