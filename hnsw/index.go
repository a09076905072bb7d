// Package hnsw implements a single-shard Hierarchical Navigable Small World
// approximate nearest-neighbor index over fixed-dimensional float32 vectors.
//
// The Index is synchronous and performs no I/O; it owns all vector data and
// adjacency lists for one shard as flat, contiguous arrays addressed by
// dense internal ids, so that encoding to the codec package's wire format
// is close to a memcpy. It is not safe for concurrent use: its pooled beam-
// search scratch (a visited bitset and two priority queues) is shared across
// calls by design, not per-call allocated.
package hnsw

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// ErrInvalidDimension is returned by New/FromRaw when dim <= 0.
var ErrInvalidDimension = errors.New("hnsw: dimension must be positive")

// Index is a single-shard HNSW graph. See the package doc for the
// concurrency contract.
type Index struct {
	opts options
	dim  int
	dist distanceFunc

	count        int
	deletedCount int
	capacity     int

	vectors []float32 // capacity * dim, row-major
	norms   []float32 // capacity; populated only when metric is cosine

	levels []byte // capacity; top layer each slot participates in

	adjacency      [][]uint32 // per layer: capacity * maxN(layer), SENTINEL-filled
	neighborCounts [][]byte   // per layer: capacity

	deletedSet *bitset // tombstones, one bit per slot

	extToInt map[string]uint32
	intToExt []string // capacity; holds ext id even for tombstoned slots

	entryPoint int // internal id of the top-layer root, -1 when empty
	maxLevel   int // layer index of the entry point, -1 when empty

	rng *rng

	// Pooled scratch, owned by the Index (§5/§9): reused across searches and
	// inserts rather than allocated per call.
	visited  *bitset
	frontier *priorityQueue // min-heap, "frontier" candidates
	results  *priorityQueue // max-heap, "current results"
}

// New constructs an empty Index over vectors of dimension dim.
func New(dim int, optFns ...Option) (*Index, error) {
	if dim <= 0 {
		return nil, ErrInvalidDimension
	}
	opts := applyOptions(dim, optFns)
	seedVal := nonDeterministicSeed()
	if opts.seed != nil {
		seedVal = *opts.seed
	}
	idx := &Index{
		opts:       opts,
		dim:        dim,
		dist:       distanceFuncFor(opts.metric),
		entryPoint: -1,
		maxLevel:   -1,
		extToInt:   make(map[string]uint32),
		rng:        newRNG(seedVal),
		visited:    newBitset(0),
		frontier:   newPriorityQueue(false),
		results:    newPriorityQueue(true),
		deletedSet: newBitset(0),
	}
	return idx, nil
}

func nonDeterministicSeed() uint32 {
	var b [4]byte
	if _, err := cryptorand.Read(b[:]); err == nil {
		return binary.LittleEndian.Uint32(b[:])
	}
	return uint32(time.Now().UnixNano())
}

// Dim returns the index's fixed vector dimension.
func (idx *Index) Dim() int { return idx.dim }

// Count returns the number of slots ever allocated, including tombstoned.
func (idx *Index) Count() int { return idx.count }

// DeletedCount returns the number of tombstoned slots.
func (idx *Index) DeletedCount() int { return idx.deletedCount }

// Size returns the number of live vectors: count - deletedCount.
func (idx *Index) Size() int { return idx.count - idx.deletedCount }

// Metric returns the configured distance metric.
func (idx *Index) Metric() Metric { return idx.opts.metric }

// Insert assigns the next internal id to vector, links it into the graph at
// a sampled level, and returns an error without mutating any state if the
// preconditions in §4.4 are violated. Because every failure mode is checked
// before any mutation begins, insert is naturally all-or-nothing; no
// explicit rollback is needed.
func (idx *Index) Insert(extID string, vector []float32) error {
	if len(vector) != idx.dim {
		return &DimensionMismatch{Expected: idx.dim, Actual: len(vector)}
	}
	if _, exists := idx.extToInt[extID]; exists {
		return &DuplicateID{ID: extID}
	}

	idx.ensureCapacity()

	slot := uint32(idx.count)
	level := sampleLevel(idx.rng, idx.opts.mL)

	start := int(slot) * idx.dim
	copy(idx.vectors[start:start+idx.dim], vector)

	var queryNorm float32
	if idx.opts.metric == Cosine {
		queryNorm = computeNorm(vector)
		idx.norms[slot] = queryNorm
	}
	idx.levels[slot] = byte(level)
	idx.intToExt[slot] = extID
	idx.extToInt[extID] = slot
	idx.count++

	idx.ensureLayers(level)

	if idx.entryPoint < 0 {
		idx.entryPoint = int(slot)
		idx.maxLevel = level
		return nil
	}

	entry := uint32(idx.entryPoint)

	// Upper descent: greedy local search down to layer level+1 (§4.4 step 1).
	if level < idx.maxLevel {
		curDist := idx.distToStored(vector, queryNorm, entry)
		for l := idx.maxLevel; l > level; l-- {
			improved := true
			for improved {
				improved = false
				for _, m := range idx.neighborsAtLayer(l, entry) {
					d := idx.distToStored(vector, queryNorm, m)
					if d < curDist {
						curDist = d
						entry = m
						improved = true
					}
				}
			}
		}
	}

	// Linking: beam search and select/link at each layer from
	// min(level, maxLevel) down to 0 (§4.4 step 2).
	top := level
	if idx.maxLevel < top {
		top = idx.maxLevel
	}
	for l := top; l >= 0; l-- {
		candidates := idx.searchLayer(vector, queryNorm, entry, idx.opts.efConstruction, l)
		maxN := idx.opts.maxN(l)

		var selected []queueItem
		if idx.opts.useHeuristic {
			selected = selectNeighborsHeuristic(candidates, maxN, idx.opts.keepPrunedConnections, idx.distBetweenStored)
		} else {
			selected = selectNeighborsSimple(candidates, maxN)
		}

		idx.setNeighbors(l, slot, selected)
		for _, s := range selected {
			idx.addBackEdge(l, s.node, slot)
		}

		if len(candidates) > 0 {
			entry = candidates[0].node
		}
	}

	if level > idx.maxLevel {
		idx.entryPoint = int(slot)
		idx.maxLevel = level
	}

	return nil
}

// addBackEdge adds a back-edge from neighbor to newNode at layer. Idempotent
// on an existing edge. If neighbor's row is already full, reruns selection
// over the existing neighbors plus newNode and rewrites the row, which may
// drop any one of them including newNode (§9's "asymmetric pruning").
func (idx *Index) addBackEdge(layer int, neighbor, newNode uint32) {
	maxN := idx.opts.maxN(layer)
	cnt := idx.neighborCount(layer, neighbor)
	row := idx.neighborRow(layer, neighbor)

	for i := 0; i < cnt; i++ {
		if row[i] == newNode {
			return
		}
	}

	if cnt < maxN {
		row[cnt] = newNode
		idx.setNeighborCount(layer, neighbor, cnt+1)
		return
	}

	existing := make([]queueItem, cnt+1)
	for i := 0; i < cnt; i++ {
		existing[i] = queueItem{node: row[i], dist: idx.distBetweenStored(neighbor, row[i])}
	}
	existing[cnt] = queueItem{node: newNode, dist: idx.distBetweenStored(neighbor, newNode)}
	insertionSortByDist(existing)

	var selected []queueItem
	if idx.opts.useHeuristic {
		selected = selectNeighborsHeuristic(existing, maxN, idx.opts.keepPrunedConnections, idx.distBetweenStored)
	} else {
		selected = selectNeighborsSimple(existing, maxN)
	}
	idx.setNeighbors(layer, neighbor, selected)
}

func insertionSortByDist(items []queueItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].dist < items[j-1].dist; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// Delete sets the tombstone for extID. Returns false if unknown or already
// tombstoned. Graph edges are left untouched (§9, "tombstones over edge
// surgery").
func (idx *Index) Delete(extID string) bool {
	slot, ok := idx.extToInt[extID]
	if !ok {
		return false
	}
	if idx.deletedSet.get(int(slot)) {
		return false
	}
	idx.deletedSet.set(int(slot))
	idx.deletedCount++
	return true
}

// Has reports whether extID is present and not tombstoned.
func (idx *Index) Has(extID string) bool {
	slot, ok := idx.extToInt[extID]
	return ok && !idx.deletedSet.get(int(slot))
}

// GetVector returns a copy of the stored vector for extID, or (nil, false)
// if extID is unknown or tombstoned.
func (idx *Index) GetVector(extID string) ([]float32, bool) {
	slot, ok := idx.extToInt[extID]
	if !ok || idx.deletedSet.get(int(slot)) {
		return nil, false
	}
	v := make([]float32, idx.dim)
	copy(v, idx.vectorAt(slot))
	return v, true
}

// Iterate walks live vectors in internal-id order, stopping early if fn
// returns false. Used by Compact, and exposed publicly since it costs
// nothing additional once the walk exists.
func (idx *Index) Iterate(fn func(extID string, vector []float32) bool) {
	for i := 0; i < idx.count; i++ {
		if idx.deletedSet.get(i) {
			continue
		}
		if !fn(idx.intToExt[i], idx.vectorAt(uint32(i))) {
			return
		}
	}
}

// Compact builds a fresh Index and reinserts every non-tombstoned vector in
// original internal-id order, then returns it. The caller is responsible
// for replacing the old Index with the result.
func (idx *Index) Compact() (*Index, error) {
	fresh, err := New(idx.dim, idx.cloneOptions()...)
	if err != nil {
		return nil, err
	}
	var insertErr error
	idx.Iterate(func(extID string, vector []float32) bool {
		if err := fresh.Insert(extID, vector); err != nil {
			insertErr = err
			return false
		}
		return true
	})
	if insertErr != nil {
		return nil, insertErr
	}
	return fresh, nil
}

// cloneOptions returns the Option set needed to rebuild an equivalent Index,
// including the same seed so that compact's rebuild is deterministic.
func (idx *Index) cloneOptions() []Option {
	opts := []Option{
		WithM(idx.opts.m),
		WithMmax0(idx.opts.mmax0),
		WithEfConstruction(idx.opts.efConstruction),
		WithEfSearch(idx.opts.efSearch),
		WithMetric(idx.opts.metric),
		WithML(idx.opts.mL),
		WithHeuristic(idx.opts.useHeuristic),
		WithKeepPrunedConnections(idx.opts.keepPrunedConnections),
	}
	if idx.opts.seed != nil {
		opts = append(opts, WithSeed(*idx.opts.seed))
	}
	return opts
}

// ShrinkToFit reallocates every backing buffer, including the pooled
// scratch bitsets, so that capacity == count (or 1 if count == 0).
// Resizing the scratch bitsets here resolves the open question in §9:
// any subsequent grow assumes capacity reflects all backing structures.
func (idx *Index) ShrinkToFit() {
	target := idx.count
	if target == 0 {
		target = 1
	}
	if target == idx.capacity {
		return
	}
	idx.reallocate(target)
}

// MemoryUsage returns the sum of bytes of the vectors, norms, levels,
// adjacency and neighbor-count arrays.
func (idx *Index) MemoryUsage() int {
	total := len(idx.vectors)*4 + len(idx.norms)*4 + len(idx.levels)
	for l := range idx.adjacency {
		total += len(idx.adjacency[l])*4 + len(idx.neighborCounts[l])
	}
	return total
}

func (idx *Index) vectorAt(slot uint32) []float32 {
	start := int(slot) * idx.dim
	return idx.vectors[start : start+idx.dim]
}

func (idx *Index) distToStored(query []float32, queryNorm float32, slot uint32) float32 {
	if idx.opts.metric == Cosine {
		return cosineDistanceNorm(query, idx.vectorAt(slot), queryNorm, idx.norms[slot])
	}
	return idx.dist(query, idx.vectorAt(slot))
}

func (idx *Index) distBetweenStored(a, b uint32) float32 {
	if idx.opts.metric == Cosine {
		return cosineDistanceNorm(idx.vectorAt(a), idx.vectorAt(b), idx.norms[a], idx.norms[b])
	}
	return idx.dist(idx.vectorAt(a), idx.vectorAt(b))
}

func (idx *Index) neighborRow(layer int, slot uint32) []uint32 {
	maxN := idx.opts.maxN(layer)
	start := int(slot) * maxN
	return idx.adjacency[layer][start : start+maxN]
}

func (idx *Index) neighborCount(layer int, slot uint32) int {
	return int(idx.neighborCounts[layer][slot])
}

func (idx *Index) setNeighborCount(layer int, slot uint32, n int) {
	idx.neighborCounts[layer][slot] = byte(n)
}

// neighborsAtLayer returns the live-slot prefix of slot's adjacency row at
// layer, which may include ids of tombstoned nodes (§3 invariant 6);
// callers filter tombstones at emit time, not during traversal.
func (idx *Index) neighborsAtLayer(layer int, slot uint32) []uint32 {
	if layer >= len(idx.adjacency) {
		return nil
	}
	return idx.neighborRow(layer, slot)[:idx.neighborCount(layer, slot)]
}

func (idx *Index) setNeighbors(layer int, slot uint32, items []queueItem) {
	row := idx.neighborRow(layer, slot)
	for i := range row {
		row[i] = Sentinel
	}
	for i, it := range items {
		row[i] = it.node
	}
	idx.setNeighborCount(layer, slot, len(items))
}

// ensureLayers appends adjacency/neighborCounts rows for any new layer up to
// and including level, sized at the current capacity and SENTINEL-filled.
func (idx *Index) ensureLayers(level int) {
	for l := len(idx.adjacency); l <= level; l++ {
		maxN := idx.opts.maxN(l)
		row := make([]uint32, idx.capacity*maxN)
		for i := range row {
			row[i] = Sentinel
		}
		idx.adjacency = append(idx.adjacency, row)
		idx.neighborCounts = append(idx.neighborCounts, make([]byte, idx.capacity))
	}
}

// ensureCapacity grows to max(capacity+1, ceil(capacity*1.5)) when count has
// reached capacity (§4.7).
func (idx *Index) ensureCapacity() {
	if idx.count < idx.capacity {
		return
	}
	newCap := idx.capacity + 1
	if scaled := int(math.Ceil(float64(idx.capacity) * 1.5)); scaled > newCap {
		newCap = scaled
	}
	idx.reallocate(newCap)
}

// reallocate resizes every backing array to newCap, preserving existing
// contents and SENTINEL-filling any new adjacency tail. Used both to grow
// (ensureCapacity) and to shrink (ShrinkToFit).
func (idx *Index) reallocate(newCap int) {
	newVectors := make([]float32, newCap*idx.dim)
	copy(newVectors, idx.vectors)
	idx.vectors = newVectors

	if idx.opts.metric == Cosine {
		newNorms := make([]float32, newCap)
		copy(newNorms, idx.norms)
		idx.norms = newNorms
	}

	newLevels := make([]byte, newCap)
	copy(newLevels, idx.levels)
	idx.levels = newLevels

	newIntToExt := make([]string, newCap)
	copy(newIntToExt, idx.intToExt)
	idx.intToExt = newIntToExt

	for l := range idx.adjacency {
		maxN := idx.opts.maxN(l)
		newRow := make([]uint32, newCap*maxN)
		for i := range newRow {
			newRow[i] = Sentinel
		}
		copy(newRow, idx.adjacency[l])
		idx.adjacency[l] = newRow

		newCounts := make([]byte, newCap)
		copy(newCounts, idx.neighborCounts[l])
		idx.neighborCounts[l] = newCounts
	}

	idx.deletedSet.resize(newCap)
	idx.visited.resize(newCap)

	idx.capacity = newCap
}

// RawState is the flat-array representation of an Index's internal state,
// used by the codec package to encode/decode a shard image without
// replaying insertion (decode must reproduce the exact persisted graph, not
// rebuild one via fresh HNSW linking). The wire format has no tombstone
// region, so RawState (and the bytes derived from it) always cover every
// slot up to Count, tombstoned or not; FromRaw always starts with zero
// tombstones.
type RawState struct {
	Dim                   int
	Count                 int
	MaxLevel              int
	EntryPoint            int
	M                     int
	Mmax0                 int
	Metric                Metric
	EfConstruction        int
	EfSearch              int
	UseHeuristic          bool
	KeepPrunedConnections bool
	Vectors               []float32
	Norms                 []float32 // nil unless Metric == Cosine
	Levels                []byte
	ExtIDs                []string
	Adjacency             [][]uint32
	NeighborCounts        [][]byte
}

// Raw exports idx's current flat-array state for encoding. The returned
// slices alias idx's backing storage; callers must not mutate them.
func (idx *Index) Raw() RawState {
	norms := []float32(nil)
	if idx.opts.metric == Cosine {
		norms = idx.norms[:idx.count]
	}

	adjacency := make([][]uint32, len(idx.adjacency))
	neighborCounts := make([][]byte, len(idx.neighborCounts))
	for l := range idx.adjacency {
		maxN := idx.opts.maxN(l)
		adjacency[l] = idx.adjacency[l][:idx.count*maxN]
		neighborCounts[l] = idx.neighborCounts[l][:idx.count]
	}

	return RawState{
		Dim:                   idx.dim,
		Count:                 idx.count,
		MaxLevel:              idx.maxLevel,
		EntryPoint:            idx.entryPoint,
		M:                     idx.opts.m,
		Mmax0:                 idx.opts.mmax0,
		Metric:                idx.opts.metric,
		EfConstruction:        idx.opts.efConstruction,
		EfSearch:              idx.opts.efSearch,
		UseHeuristic:          idx.opts.useHeuristic,
		KeepPrunedConnections: idx.opts.keepPrunedConnections,
		Vectors:               idx.vectors[:idx.count*idx.dim],
		Norms:                 norms,
		Levels:                idx.levels[:idx.count],
		ExtIDs:                idx.intToExt[:idx.count],
		Adjacency:             adjacency,
		NeighborCounts:        neighborCounts,
	}
}

// FromRaw builds a tight Index (capacity == count, zero tombstones) from a
// decoded RawState. optFns may supply a seed for any subsequent inserts;
// the persisted graph shape itself is taken verbatim from state.
func FromRaw(state RawState, optFns ...Option) (*Index, error) {
	if state.Dim <= 0 {
		return nil, ErrInvalidDimension
	}
	opts := applyOptions(state.Dim, optFns)
	opts.m = state.M
	opts.mmax0 = state.Mmax0
	opts.mmax0Set = true
	opts.metric = state.Metric
	opts.efConstruction = state.EfConstruction
	opts.efSearch = state.EfSearch
	opts.useHeuristic = state.UseHeuristic
	opts.keepPrunedConnections = state.KeepPrunedConnections

	seedVal := nonDeterministicSeed()
	if opts.seed != nil {
		seedVal = *opts.seed
	}

	idx := &Index{
		opts:           opts,
		dim:            state.Dim,
		dist:           distanceFuncFor(opts.metric),
		count:          state.Count,
		capacity:       state.Count,
		entryPoint:     state.EntryPoint,
		maxLevel:       state.MaxLevel,
		vectors:        state.Vectors,
		norms:          state.Norms,
		levels:         state.Levels,
		intToExt:       state.ExtIDs,
		adjacency:      state.Adjacency,
		neighborCounts: state.NeighborCounts,
		extToInt:       make(map[string]uint32, state.Count),
		rng:            newRNG(seedVal),
		visited:        newBitset(state.Count),
		frontier:       newPriorityQueue(false),
		results:        newPriorityQueue(true),
		deletedSet:     newBitset(state.Count),
	}
	for i, id := range state.ExtIDs {
		idx.extToInt[id] = uint32(i)
	}
	return idx, nil
}
