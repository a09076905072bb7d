package hnsw

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexInsertAndSearchBasic(t *testing.T) {
	idx, err := New(3, WithSeed(1))
	require.NoError(t, err)

	require.NoError(t, idx.Insert("a", []float32{1, 0, 0}))
	require.NoError(t, idx.Insert("b", []float32{0, 1, 0}))
	require.NoError(t, idx.Insert("c", []float32{0, 0, 1}))

	results, err := idx.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, float32(0), results[0].Distance, 1e-6)
	assert.Contains(t, []string{"b", "c"}, results[1].ID)
	assert.InDelta(t, float32(2), results[1].Distance, 1e-6)
}

func TestIndexInsertDimensionMismatch(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	err = idx.Insert("a", []float32{1, 2})
	var dm *DimensionMismatch
	assert.ErrorAs(t, err, &dm)
}

func TestIndexInsertDuplicateID(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("a", []float32{1, 2}))
	err = idx.Insert("a", []float32{3, 4})
	var dup *DuplicateID
	assert.ErrorAs(t, err, &dup)
}

func TestIndexInsertRollsBackOnError(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("a", []float32{1, 2}))

	err = idx.Insert("bad", []float32{1})
	assert.Error(t, err)
	assert.Equal(t, 1, idx.Count())
	assert.False(t, idx.Has("bad"))
}

func TestIndexSearchEmptyIndex(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	results, err := idx.Search([]float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexSearchInvalidK(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("a", []float32{1, 2, 3}))
	_, err = idx.Search([]float32{1, 2, 3}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestIndexSearchEfOverrideBelowKRaisedToK(t *testing.T) {
	idx, err := New(2, WithSeed(9))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), []float32{float32(i), float32(i)}))
	}
	results, err := idx.Search([]float32{0, 0}, 10, WithEfOverride(1))
	require.NoError(t, err)
	assert.Len(t, results, 10)
}

func TestIndexDeleteAndHas(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("a", []float32{1, 1}))

	assert.True(t, idx.Has("a"))
	assert.True(t, idx.Delete("a"))
	assert.False(t, idx.Has("a"))
	assert.False(t, idx.Delete("a"), "deleting twice returns false")
	assert.False(t, idx.Delete("unknown"))

	_, ok := idx.GetVector("a")
	assert.False(t, ok)
}

func TestIndexSearchSkipsTombstones(t *testing.T) {
	idx, err := New(2, WithSeed(3))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), []float32{float32(i), 0}))
	}
	idx.Delete("v0")

	results, err := idx.Search([]float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v1", results[0].ID)
}

func TestIndexSearchFilter(t *testing.T) {
	idx, err := New(2, WithSeed(4))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), []float32{float32(i), 0}))
	}
	results, err := idx.Search([]float32{0, 0}, 3, WithFilter(func(id string) bool {
		return id != "v0" && id != "v1"
	}))
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NotEqual(t, "v0", r.ID)
		assert.NotEqual(t, "v1", r.ID)
	}
}

func TestIndexCompactDropsTombstones(t *testing.T) {
	idx, err := New(2, WithSeed(5))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), []float32{float32(i), float32(i) * 2}))
	}
	for i := 0; i < 5; i++ {
		idx.Delete(fmt.Sprintf("v%d", i))
	}

	fresh, err := idx.Compact()
	require.NoError(t, err)
	assert.Equal(t, idx.Size(), fresh.Size())
	assert.Equal(t, 0, fresh.DeletedCount())

	for i := 0; i < 5; i++ {
		assert.False(t, fresh.Has(fmt.Sprintf("v%d", i)))
	}
	for i := 5; i < 20; i++ {
		assert.True(t, fresh.Has(fmt.Sprintf("v%d", i)))
	}
}

func TestIndexShrinkToFit(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), []float32{float32(i), 0}))
	}
	assert.Greater(t, idx.capacity, 0)
	idx.ShrinkToFit()
	assert.Equal(t, idx.Count(), idx.capacity)

	// Still searchable and growable after shrinking.
	require.NoError(t, idx.Insert("v5", []float32{5, 0}))
	results, err := idx.Search([]float32{5, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v5", results[0].ID)
}

func TestIndexShrinkToFitEmpty(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	idx.ShrinkToFit()
	assert.Equal(t, 1, idx.capacity)
}

func TestIndexMemoryUsage(t *testing.T) {
	idx, err := New(4)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("a", []float32{1, 2, 3, 4}))
	assert.Greater(t, idx.MemoryUsage(), 0)
}

func TestIndexIterateStopsEarly(t *testing.T) {
	idx, err := New(1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), []float32{float32(i)}))
	}
	count := 0
	idx.Iterate(func(extID string, vector []float32) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func TestIndexCapacityGrowth(t *testing.T) {
	idx, err := New(1)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), []float32{float32(i)}))
	}
	assert.Equal(t, 100, idx.Count())
	assert.GreaterOrEqual(t, idx.capacity, 100)
}

func TestIndexDeterministicEncodeInputs(t *testing.T) {
	build := func() *Index {
		idx, err := New(8, WithSeed(42), WithM(8))
		require.NoError(t, err)
		r := rand.New(rand.NewSource(1))
		for i := 0; i < 200; i++ {
			v := make([]float32, 8)
			for j := range v {
				v[j] = r.Float32()
			}
			require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), v))
		}
		return idx
	}

	a := build()
	b := build()
	assert.Equal(t, a.Raw().Adjacency, b.Raw().Adjacency)
	assert.Equal(t, a.Raw().Levels, b.Raw().Levels)
	assert.Equal(t, a.entryPoint, b.entryPoint)
	assert.Equal(t, a.maxLevel, b.maxLevel)
}

func TestIndexCosineMetricZeroNorm(t *testing.T) {
	idx, err := New(3, WithMetric(Cosine))
	require.NoError(t, err)
	require.NoError(t, idx.Insert("zero", []float32{0, 0, 0}))
	require.NoError(t, idx.Insert("v", []float32{1, 0, 0}))

	results, err := idx.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "v", results[0].ID)
}

func bruteForceTopK(vectors map[string][]float32, query []float32, k int) []string {
	type scored struct {
		id   string
		dist float32
	}
	out := make([]scored, 0, len(vectors))
	for id, v := range vectors {
		out = append(out, scored{id, euclideanDistance(query, v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	if len(out) > k {
		out = out[:k]
	}
	ids := make([]string, len(out))
	for i, s := range out {
		ids[i] = s.id
	}
	return ids
}

func TestIndexRecallAgainstBruteForce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping recall test in short mode")
	}

	const (
		n   = 2000
		dim = 32
		k   = 10
	)
	r := rand.New(rand.NewSource(7))
	vectors := make(map[string][]float32, n)

	idx, err := New(dim, WithSeed(7), WithM(16), WithEfConstruction(200), WithEfSearch(200))
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		id := fmt.Sprintf("v%d", i)
		vectors[id] = v
		require.NoError(t, idx.Insert(id, v))
	}

	var totalRecall float64
	const queries = 30
	for q := 0; q < queries; q++ {
		query := make([]float32, dim)
		for j := range query {
			query[j] = r.Float32()*2 - 1
		}
		truth := bruteForceTopK(vectors, query, k)
		truthSet := make(map[string]bool, len(truth))
		for _, id := range truth {
			truthSet[id] = true
		}

		got, err := idx.Search(query, k)
		require.NoError(t, err)

		hits := 0
		for _, r := range got {
			if truthSet[r.ID] {
				hits++
			}
		}
		totalRecall += float64(hits) / float64(k)
	}
	meanRecall := totalRecall / queries
	assert.GreaterOrEqual(t, meanRecall, 0.85, "mean recall@%d too low: %f", k, meanRecall)
}

func TestIndexRawFromRawRoundTrip(t *testing.T) {
	idx, err := New(4, WithSeed(11), WithMetric(Cosine))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		v := []float32{float32(i), float32(i + 1), float32(i + 2), float32(i + 3)}
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), v))
	}

	raw := idx.Raw()
	rebuilt, err := FromRaw(raw)
	require.NoError(t, err)

	assert.Equal(t, idx.Size(), rebuilt.Size())
	assert.Equal(t, 0, rebuilt.DeletedCount())

	query := []float32{10, 11, 12, 13}
	want, err := idx.Search(query, 5)
	require.NoError(t, err)
	got, err := rebuilt.Search(query, 5)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-4)
	}
}

func TestIndexNewInvalidDimension(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	_, err = FromRaw(RawState{Dim: -1})
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestParseMetric(t *testing.T) {
	m, ok := ParseMetric("cosine")
	assert.True(t, ok)
	assert.Equal(t, Cosine, m)
	assert.Equal(t, "cosine", m.String())

	_, ok = ParseMetric("bogus")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Metric(99).String())
}

func TestMaxNByLayer(t *testing.T) {
	idx, err := New(2, WithM(16))
	require.NoError(t, err)
	assert.Equal(t, 32, idx.opts.maxN(0))
	assert.Equal(t, 16, idx.opts.maxN(1))
}

func TestHeuristicVsSimpleSelectionProduceDifferentButValidResults(t *testing.T) {
	idxHeuristic, err := New(2, WithSeed(99), WithHeuristic(true))
	require.NoError(t, err)
	idxSimple, err := New(2, WithSeed(99), WithHeuristic(false))
	require.NoError(t, err)

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 300; i++ {
		v := []float32{r.Float32() * 10, r.Float32() * 10}
		id := fmt.Sprintf("v%d", i)
		require.NoError(t, idxHeuristic.Insert(id, v))
		require.NoError(t, idxSimple.Insert(id, v))
	}

	query := []float32{5, 5}
	resH, err := idxHeuristic.Search(query, 10)
	require.NoError(t, err)
	resS, err := idxSimple.Search(query, 10)
	require.NoError(t, err)
	assert.Len(t, resH, 10)
	assert.Len(t, resS, 10)
}

func TestComputeNormEdgeCase(t *testing.T) {
	assert.Equal(t, float32(0), computeNorm([]float32{}))
	assert.InDelta(t, float32(math.Sqrt(2)), computeNorm([]float32{1, 1}), 1e-6)
}
