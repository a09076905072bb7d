package codec

import "github.com/nnvec/hnswdb/hnsw"

// HeaderInfo is the subset of a shard image's header exposed by ReadHeader
// without parsing the rest of the image.
type HeaderInfo struct {
	Dim    int
	Count  int
	Metric hnsw.Metric
	M      int
}

// Encode produces a self-describing byte buffer for idx. The wire format
// carries no tombstone region: a tombstoned slot's vector, level, and
// adjacency row are persisted exactly as a live slot's would be. Callers
// that want tombstoned data physically dropped must call idx.Compact()
// before Encode.
func Encode(idx *hnsw.Index) []byte {
	return encodeRaw(idx.Raw())
}

// Decode is the strict inverse of Encode: the returned Index has
// capacity == count and zero tombstones. When the encoded Index had no
// tombstones, its searches agree with the encoded Index's up to
// floating-point tolerance; slots that were tombstoned come back live.
func Decode(data []byte) (*hnsw.Index, error) {
	state, err := decodeRaw(data)
	if err != nil {
		return nil, err
	}
	return hnsw.FromRaw(state)
}

// ReadHeader returns {dim, count, metric, M} without parsing the ID table,
// vectors, or adjacency regions.
func ReadHeader(data []byte) (HeaderInfo, error) {
	h, err := readHeader(newReader(data))
	if err != nil {
		return HeaderInfo{}, err
	}
	return HeaderInfo{
		Dim:    int(h.Dim),
		Count:  int(h.Count),
		Metric: hnsw.Metric(h.Metric),
		M:      int(h.M),
	}, nil
}

func encodeRaw(state hnsw.RawState) []byte {
	w := newWriter()

	var flags byte
	if state.Metric == hnsw.Cosine {
		flags |= flagCosineNorms
	}
	if state.UseHeuristic {
		flags |= flagUseHeuristic
	}
	if state.KeepPrunedConnections {
		flags |= flagKeepPrunedConnections
	}

	writeHeader(w, Header{
		Dim:            uint32(state.Dim),
		Count:          uint32(state.Count),
		MaxLevel:       int32(state.MaxLevel),
		EntryPoint:     int32(state.EntryPoint),
		M:              uint32(state.M),
		Mmax0:          uint32(state.Mmax0),
		Metric:         byte(state.Metric),
		Flags:          flags,
		EfConstruction: uint32(state.EfConstruction),
		EfSearch:       uint32(state.EfSearch),
	})

	idBytes := 0
	for _, id := range state.ExtIDs {
		b := []byte(id)
		w.u32(uint32(len(b)))
		w.raw(b)
		idBytes += 4 + len(b)
	}
	w.zero(padLen(idBytes, 8))

	for _, f := range state.Vectors {
		w.f32(f)
	}

	if flags&flagCosineNorms != 0 {
		for _, f := range state.Norms {
			w.f32(f)
		}
	}

	w.raw(state.Levels)
	w.zero(padLen(len(state.Levels), 8))

	w.u32(uint32(len(state.Adjacency)))
	for layer, row := range state.Adjacency {
		maxN := maxNFor(state, layer)
		w.u32(uint32(layer))
		w.u32(uint32(state.Count))
		w.u32(uint32(maxN))
		w.raw(state.NeighborCounts[layer])
		w.zero(padLen(len(state.NeighborCounts[layer]), 4))
		for _, id := range row {
			w.u32(id)
		}
	}

	return w.bytes()
}

func decodeRaw(data []byte) (hnsw.RawState, error) {
	r := newReader(data)
	h, err := readHeader(r)
	if err != nil {
		return hnsw.RawState{}, err
	}

	count := int(h.Count)
	dim := int(h.Dim)

	extIDs := make([]string, count)
	idBytes := 0
	for i := 0; i < count; i++ {
		l, err := r.u32()
		if err != nil {
			return hnsw.RawState{}, err
		}
		b, err := r.raw(int(l))
		if err != nil {
			return hnsw.RawState{}, err
		}
		extIDs[i] = string(b)
		idBytes += 4 + int(l)
	}
	if err := r.skip(padLen(idBytes, 8)); err != nil {
		return hnsw.RawState{}, err
	}

	vectors := make([]float32, count*dim)
	for i := range vectors {
		f, err := r.f32()
		if err != nil {
			return hnsw.RawState{}, err
		}
		vectors[i] = f
	}

	var norms []float32
	if h.hasCosineNorms() {
		norms = make([]float32, count)
		for i := range norms {
			f, err := r.f32()
			if err != nil {
				return hnsw.RawState{}, err
			}
			norms[i] = f
		}
	}

	levelsRaw, err := r.raw(count)
	if err != nil {
		return hnsw.RawState{}, err
	}
	levels := make([]byte, count)
	copy(levels, levelsRaw)
	if err := r.skip(padLen(count, 8)); err != nil {
		return hnsw.RawState{}, err
	}

	numLayers, err := r.u32()
	if err != nil {
		return hnsw.RawState{}, err
	}

	adjacency := make([][]uint32, numLayers)
	neighborCounts := make([][]byte, numLayers)
	for l := 0; l < int(numLayers); l++ {
		if _, err := r.u32(); err != nil { // layer_index, redundant with position
			return hnsw.RawState{}, err
		}
		nodeCount, err := r.u32()
		if err != nil {
			return hnsw.RawState{}, err
		}
		maxNeighbors, err := r.u32()
		if err != nil {
			return hnsw.RawState{}, err
		}

		countsRaw, err := r.raw(int(nodeCount))
		if err != nil {
			return hnsw.RawState{}, err
		}
		counts := make([]byte, nodeCount)
		copy(counts, countsRaw)
		if err := r.skip(padLen(int(nodeCount), 4)); err != nil {
			return hnsw.RawState{}, err
		}

		ids := make([]uint32, int(nodeCount)*int(maxNeighbors))
		for i := range ids {
			v, err := r.u32()
			if err != nil {
				return hnsw.RawState{}, err
			}
			ids[i] = v
		}

		adjacency[l] = ids
		neighborCounts[l] = counts
	}

	return hnsw.RawState{
		Dim:                   dim,
		Count:                 count,
		MaxLevel:              int(h.MaxLevel),
		EntryPoint:            int(h.EntryPoint),
		M:                     int(h.M),
		Mmax0:                 int(h.Mmax0),
		Metric:                hnsw.Metric(h.Metric),
		EfConstruction:        int(h.EfConstruction),
		EfSearch:              int(h.EfSearch),
		UseHeuristic:          h.useHeuristic(),
		KeepPrunedConnections: h.keepPrunedConnections(),
		Vectors:               vectors,
		Norms:                 norms,
		Levels:                levels,
		ExtIDs:                extIDs,
		Adjacency:             adjacency,
		NeighborCounts:        neighborCounts,
	}, nil
}

func maxNFor(state hnsw.RawState, layer int) int {
	if layer == 0 {
		return state.Mmax0
	}
	return state.M
}
