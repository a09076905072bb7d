package hnsw

import "container/heap"

var _ heap.Interface = (*priorityQueue)(nil)

// queueItem is a candidate internal id paired with its distance to the
// current query.
type queueItem struct {
	node uint32
	dist float32
}

// priorityQueue is a value-based binary heap over queueItem, used as the
// Index's pooled beam-search scratch. isMaxHeap selects between the
// "frontier" min-queue and the "results" max-queue described in §4.6; both
// share this type, reset and reused across searches.
type priorityQueue struct {
	isMaxHeap bool
	items     []queueItem
}

func newPriorityQueue(isMaxHeap bool) *priorityQueue {
	return &priorityQueue{
		isMaxHeap: isMaxHeap,
		items:     make([]queueItem, 0, 64),
	}
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	if pq.isMaxHeap {
		return pq.items[i].dist > pq.items[j].dist
	}
	return pq.items[i].dist < pq.items[j].dist
}

func (pq *priorityQueue) Swap(i, j int) { pq.items[i], pq.items[j] = pq.items[j], pq.items[i] }

func (pq *priorityQueue) Push(x any) {
	pq.items = append(pq.items, x.(queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[:n-1]
	return item
}

// top returns the root element without removing it.
func (pq *priorityQueue) top() (queueItem, bool) {
	if len(pq.items) == 0 {
		return queueItem{}, false
	}
	return pq.items[0], true
}

func (pq *priorityQueue) pushItem(it queueItem) {
	pq.items = append(pq.items, it)
	pq.siftUp(len(pq.items) - 1)
}

func (pq *priorityQueue) popItem() (queueItem, bool) {
	n := len(pq.items)
	if n == 0 {
		return queueItem{}, false
	}
	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]
	if len(pq.items) > 0 {
		pq.siftDown(0)
	}
	return item, true
}

func (pq *priorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.Less(i, parent) {
			break
		}
		pq.Swap(i, parent)
		i = parent
	}
}

func (pq *priorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		right := left + 1
		if right < n && pq.Less(right, left) {
			child = right
		}
		if !pq.Less(child, i) {
			break
		}
		pq.Swap(i, child)
		i = child
	}
}

func (pq *priorityQueue) reset() {
	pq.items = pq.items[:0]
}

// sortedAscending copies items into a distance-ascending slice without
// mutating pq.
func (pq *priorityQueue) sortedAscending() []queueItem {
	out := make([]queueItem, len(pq.items))
	copy(out, pq.items)
	// Simple insertion sort: ef is small (tens to low hundreds).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].dist < out[j-1].dist; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
