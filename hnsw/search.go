package hnsw

// Result is one emitted neighbor: its external id and distance to the query
// under the index's configured metric.
type Result struct {
	ID       string
	Distance float32
}

// SearchOption configures a single Search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	ef     int
	filter func(string) bool
}

// WithEfOverride sets the beam width for this search only. Per §9, a value
// below k is silently raised to k rather than rejected.
func WithEfOverride(ef int) SearchOption {
	return func(o *searchOptions) { o.ef = ef }
}

// WithFilter restricts emitted results to external ids for which fn returns
// true. Filtering happens at emission time, after tombstone filtering.
func WithFilter(fn func(string) bool) SearchOption {
	return func(o *searchOptions) { o.filter = fn }
}

func resolveSearchOptions(optFns []SearchOption) searchOptions {
	var o searchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Search returns up to k results in ascending-distance order. Returns
// (nil, nil) if the index is empty.
func (idx *Index) Search(query []float32, k int, optFns ...SearchOption) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, &DimensionMismatch{Expected: idx.dim, Actual: len(query)}
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if idx.entryPoint < 0 {
		return nil, nil
	}

	cfg := resolveSearchOptions(optFns)
	ef := cfg.ef
	if ef == 0 {
		ef = idx.opts.efSearch
	}
	if ef < k {
		ef = k
	}

	var queryNorm float32
	if idx.opts.metric == Cosine {
		queryNorm = computeNorm(query)
	}

	entry := uint32(idx.entryPoint)
	curDist := idx.distToStored(query, queryNorm, entry)
	for l := idx.maxLevel; l > 0; l-- {
		improved := true
		for improved {
			improved = false
			for _, m := range idx.neighborsAtLayer(l, entry) {
				d := idx.distToStored(query, queryNorm, m)
				if d < curDist {
					curDist = d
					entry = m
					improved = true
				}
			}
		}
	}

	candidates := idx.searchLayer(query, queryNorm, entry, ef, 0)

	results := make([]Result, 0, k)
	for _, c := range candidates {
		if idx.deletedSet.get(int(c.node)) {
			continue
		}
		extID := idx.intToExt[c.node]
		if cfg.filter != nil && !cfg.filter(extID) {
			continue
		}
		results = append(results, Result{ID: extID, Distance: c.dist})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// searchLayer runs the beam search described in §4.6 at layer, starting
// from entry, against query (queryNorm only matters for cosine), retaining
// up to ef results. It uses and resets the Index's pooled scratch, so it is
// not safe to call concurrently with any other operation on idx.
func (idx *Index) searchLayer(query []float32, queryNorm float32, entry uint32, ef, layer int) []queueItem {
	idx.visited.grow(idx.count)
	idx.visited.clear()
	idx.frontier.reset()
	idx.results.reset()

	d0 := idx.distToStored(query, queryNorm, entry)
	idx.frontier.pushItem(queueItem{node: entry, dist: d0})
	idx.results.pushItem(queueItem{node: entry, dist: d0})
	idx.visited.set(int(entry))

	for idx.frontier.Len() > 0 {
		n, _ := idx.frontier.popItem()

		if w, ok := idx.results.top(); ok && n.dist > w.dist {
			break
		}

		for _, m := range idx.neighborsAtLayer(layer, n.node) {
			if idx.visited.get(int(m)) {
				continue
			}
			idx.visited.set(int(m))

			d := idx.distToStored(query, queryNorm, m)
			worst, hasWorst := idx.results.top()
			if idx.results.Len() < ef || (hasWorst && d < worst.dist) {
				idx.frontier.pushItem(queueItem{node: m, dist: d})
				idx.results.pushItem(queueItem{node: m, dist: d})
				if idx.results.Len() > ef {
					idx.results.popItem()
				}
			}
		}
	}

	return idx.results.sortedAscending()
}
