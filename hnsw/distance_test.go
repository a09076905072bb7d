package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"OriginOffset", []float32{3, 4, 0}, []float32{0, 0, 0}, 25},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Large", make([]float32, 37), make([]float32, 37), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := euclideanDistance(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"Orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 1},
		{"ZeroVector", []float32{0, 0, 0}, []float32{1, 2, 3}, 1},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineDistance(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestInnerProductDistance(t *testing.T) {
	got := innerProductDistance([]float32{1, 2, 3, 4}, []float32{4, 3, 2, 1})
	assert.InDelta(t, float32(-20), got, 1e-5)
}

func TestComputeNorm(t *testing.T) {
	assert.InDelta(t, float32(5), computeNorm([]float32{3, 4, 0}), 1e-5)
	assert.InDelta(t, float32(0), computeNorm([]float32{0, 0, 0}), 1e-5)
}

func TestDistanceFuncFor(t *testing.T) {
	assert.NotNil(t, distanceFuncFor(Euclidean))
	assert.NotNil(t, distanceFuncFor(Cosine))
	assert.NotNil(t, distanceFuncFor(InnerProduct))
}
