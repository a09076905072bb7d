package hnsw

// Stats summarizes the current graph shape, grouped by layer.
type Stats struct {
	Size         int
	Count        int
	DeletedCount int
	Capacity     int
	MaxLevel     int
	EntryPoint   int
	MemoryBytes  int
	PerLayer     []LayerStats
}

// LayerStats summarizes one adjacency layer.
type LayerStats struct {
	Layer          int
	Nodes          int
	TotalNeighbors int
	AvgNeighbors   float64
}

// Stats reports a snapshot of the index's current shape. Intended for
// diagnostics, not for any performance-sensitive path.
func (idx *Index) Stats() Stats {
	s := Stats{
		Size:         idx.Size(),
		Count:        idx.count,
		DeletedCount: idx.deletedCount,
		Capacity:     idx.capacity,
		MaxLevel:     idx.maxLevel,
		EntryPoint:   idx.entryPoint,
		MemoryBytes:  idx.MemoryUsage(),
		PerLayer:     make([]LayerStats, len(idx.adjacency)),
	}
	for l := range idx.adjacency {
		nodes, total := 0, 0
		for i := 0; i < idx.count; i++ {
			if int(idx.levels[i]) < l {
				continue
			}
			n := idx.neighborCount(l, uint32(i))
			if n == 0 {
				continue
			}
			nodes++
			total += n
		}
		avg := 0.0
		if nodes > 0 {
			avg = float64(total) / float64(nodes)
		}
		s.PerLayer[l] = LayerStats{Layer: l, Nodes: nodes, TotalNeighbors: total, AvgNeighbors: avg}
	}
	return s
}
