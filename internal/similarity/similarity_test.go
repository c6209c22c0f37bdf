package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 2}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestDot(t *testing.T) {
	assert.InDelta(t, 32.0, Dot([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-9)
	assert.Equal(t, 0.0, Dot([]float32{1}, []float32{1, 2}))
}

func TestEuclidean(t *testing.T) {
	assert.InDelta(t, 5.0, Euclidean([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.True(t, math.IsInf(Euclidean([]float32{1}, []float32{1, 2}), 1))
}

func TestScore(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}

	assert.InDelta(t, 1.0/6.0, Score(domain.MetricEuclidean, a, b), 1e-9)
	assert.InDelta(t, 1.0, Score(domain.MetricEuclidean, b, b), 1e-9)
	assert.InDelta(t, 25.0, Score(domain.MetricDotProduct, b, b), 1e-9)
	assert.InDelta(t, 1.0, Score(domain.MetricCosine, b, b), 1e-9)
}

func TestScore_RanksCloserHigher(t *testing.T) {
	query := []float32{1, 0}
	near := []float32{0.9, 0.1}
	far := []float32{0.1, 0.9}

	for _, m := range []domain.Metric{domain.MetricCosine, domain.MetricDotProduct, domain.MetricEuclidean} {
		assert.Greater(t, Score(m, query, near), Score(m, query, far), "metric %s", m)
	}
}
