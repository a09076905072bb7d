package codec_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnvec/hnswdb/codec"
	"github.com/nnvec/hnswdb/hnsw"
)

func buildIndex(t *testing.T, n, dim int, metric hnsw.Metric) *hnsw.Index {
	t.Helper()
	idx, err := hnsw.New(dim, hnsw.WithSeed(123), hnsw.WithMetric(metric))
	require.NoError(t, err)
	r := rand.New(rand.NewSource(99))
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		require.NoError(t, idx.Insert(fmt.Sprintf("v%d", i), v))
	}
	return idx
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, metric := range []hnsw.Metric{hnsw.Euclidean, hnsw.Cosine, hnsw.InnerProduct} {
		t.Run(metric.String(), func(t *testing.T) {
			idx := buildIndex(t, 150, 16, metric)
			data := codec.Encode(idx)

			decoded, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, idx.Size(), decoded.Size())
			assert.Equal(t, 0, decoded.DeletedCount())

			query := make([]float32, 16)
			for i := range query {
				query[i] = float32(i) / 16
			}
			want, err := idx.Search(query, 10)
			require.NoError(t, err)
			got, err := decoded.Search(query, 10)
			require.NoError(t, err)
			require.Equal(t, len(want), len(got))
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
				assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-4)
			}
		})
	}
}

func TestReadHeaderMatchesIndex(t *testing.T) {
	idx := buildIndex(t, 50, 8, hnsw.Cosine)
	data := codec.Encode(idx)

	info, err := codec.ReadHeader(data)
	require.NoError(t, err)
	assert.Equal(t, idx.Dim(), info.Dim)
	assert.Equal(t, idx.Size(), info.Count)
	assert.Equal(t, idx.Metric(), info.Metric)
}

func TestDecodeBadMagic(t *testing.T) {
	data := make([]byte, codec.HeaderSize)
	_, err := codec.Decode(data)
	var bad *codec.BadMagic
	assert.ErrorAs(t, err, &bad)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	idx := buildIndex(t, 5, 4, hnsw.Euclidean)
	data := codec.Encode(idx)
	// version is the second u32, bytes [4:8], little-endian.
	data[4] = 99
	_, err := codec.Decode(data)
	var unsupported *codec.UnsupportedVersion
	assert.ErrorAs(t, err, &unsupported)
}

func TestDecodeTruncated(t *testing.T) {
	idx := buildIndex(t, 20, 4, hnsw.Euclidean)
	data := codec.Encode(idx)
	_, err := codec.Decode(data[:len(data)-10])
	var truncated *codec.Truncated
	assert.ErrorAs(t, err, &truncated)
}

func TestEncodeUnicodeExternalIDs(t *testing.T) {
	idx, err := hnsw.New(2, hnsw.WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, idx.Insert("日本語", []float32{1, 2}))
	require.NoError(t, idx.Insert("emoji-🎉", []float32{3, 4}))

	data := codec.Encode(idx)
	decoded, err := codec.Decode(data)
	require.NoError(t, err)

	for _, id := range []string{"日本語", "emoji-🎉"} {
		assert.True(t, decoded.Has(id))
	}
	v1, ok := decoded.GetVector("日本語")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, v1)
	v2, ok := decoded.GetVector("emoji-🎉")
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, v2)
}

func TestEncodeDecodeEmptyIndex(t *testing.T) {
	idx, err := hnsw.New(3)
	require.NoError(t, err)
	data := codec.Encode(idx)
	decoded, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Size())
}

func TestEncodeIsDeterministic(t *testing.T) {
	a := buildIndex(t, 80, 8, hnsw.Euclidean)
	b := buildIndex(t, 80, 8, hnsw.Euclidean)
	assert.Equal(t, codec.Encode(a), codec.Encode(b))
}
