package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityQueueMinHeapOrder(t *testing.T) {
	pq := newPriorityQueue(false)
	dists := []float32{5, 1, 4, 2, 3}
	for i, d := range dists {
		pq.pushItem(queueItem{node: uint32(i), dist: d})
	}
	var out []float32
	for pq.Len() > 0 {
		it, ok := pq.popItem()
		assert.True(t, ok)
		out = append(out, it.dist)
	}
	assert.Equal(t, []float32{1, 2, 3, 4, 5}, out)
}

func TestPriorityQueueMaxHeapOrder(t *testing.T) {
	pq := newPriorityQueue(true)
	dists := []float32{5, 1, 4, 2, 3}
	for i, d := range dists {
		pq.pushItem(queueItem{node: uint32(i), dist: d})
	}
	var out []float32
	for pq.Len() > 0 {
		it, ok := pq.popItem()
		assert.True(t, ok)
		out = append(out, it.dist)
	}
	assert.Equal(t, []float32{5, 4, 3, 2, 1}, out)
}

func TestPriorityQueueTop(t *testing.T) {
	pq := newPriorityQueue(false)
	_, ok := pq.top()
	assert.False(t, ok)

	pq.pushItem(queueItem{node: 1, dist: 3})
	pq.pushItem(queueItem{node: 2, dist: 1})
	top, ok := pq.top()
	assert.True(t, ok)
	assert.Equal(t, float32(1), top.dist)
}

func TestPriorityQueueReset(t *testing.T) {
	pq := newPriorityQueue(false)
	pq.pushItem(queueItem{node: 1, dist: 1})
	pq.reset()
	assert.Equal(t, 0, pq.Len())
}

func TestPriorityQueueSortedAscending(t *testing.T) {
	pq := newPriorityQueue(true)
	for _, d := range []float32{9, 2, 7, 1} {
		pq.pushItem(queueItem{dist: d})
	}
	sorted := pq.sortedAscending()
	assert.Equal(t, 4, pq.Len(), "sortedAscending must not drain the heap")
	dists := make([]float32, len(sorted))
	for i, it := range sorted {
		dists[i] = it.dist
	}
	assert.Equal(t, []float32{1, 2, 7, 9}, dists)
}
