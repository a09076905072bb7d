package hnsw

// selectNeighborsSimple takes the maxN closest candidates from a
// distance-ascending list.
func selectNeighborsSimple(candidates []queueItem, maxN int) []queueItem {
	if len(candidates) <= maxN {
		return candidates
	}
	return candidates[:maxN]
}

// selectNeighborsHeuristic implements HNSW Algorithm 4's diversity-first
// pruning (§4.5). candidates must already be distance-to-query ascending.
// dist(x, y) measures the stored vectors at internal ids x and y.
func selectNeighborsHeuristic(candidates []queueItem, maxN int, keepPruned bool, distBetween func(a, b uint32) float32) []queueItem {
	selected := make([]queueItem, 0, maxN)
	discarded := make([]queueItem, 0, len(candidates))

	for _, c := range candidates {
		if len(selected) >= maxN {
			break
		}
		keep := true
		for _, s := range selected {
			if distBetween(c.node, s.node) < c.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}

	if keepPruned {
		for _, c := range discarded {
			if len(selected) >= maxN {
				break
			}
			if containsNode(selected, c.node) {
				continue
			}
			selected = append(selected, c)
		}
	}

	return selected
}

func containsNode(items []queueItem, node uint32) bool {
	for _, it := range items {
		if it.node == node {
			return true
		}
	}
	return false
}
