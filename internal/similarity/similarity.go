// Package similarity scores vectors for the local vector backends.
// Every metric is mapped so that a higher score means more similar.
package similarity

import (
	"math"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Mismatched or zero-length vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Dot returns the dot product of a and b.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Score returns the similarity of a and b under metric.
// Euclidean distance d is reported as 1/(1+d) so identical vectors score 1.
func Score(metric domain.Metric, a, b []float32) float64 {
	switch metric {
	case domain.MetricDotProduct:
		return Dot(a, b)
	case domain.MetricEuclidean:
		return 1 / (1 + Euclidean(a, b))
	default:
		return Cosine(a, b)
	}
}
