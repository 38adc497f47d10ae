// ABOUTME: Vector math for voiceprint matching
// ABOUTME: Cosine similarity and running-centroid updates over feature vectors
package core

import "math"

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// updateCentroid folds vectors into a centroid built from n earlier vectors
func updateCentroid(centroid []float64, n int, vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return centroid
	}
	dim := len(vectors[0])
	out := make([]float64, dim)
	if n > 0 && len(centroid) == dim {
		for i := range out {
			out[i] = centroid[i] * float64(n)
		}
	}
	for _, v := range vectors {
		for i := range out {
			out[i] += v[i]
		}
	}
	total := float64(n + len(vectors))
	if len(centroid) != dim {
		total = float64(len(vectors))
	}
	for i := range out {
		out[i] /= total
	}
	return out
}
