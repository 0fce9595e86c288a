package embedding

import "math"

// poolEpsilon guards mean pooling against an all-masked input.
const poolEpsilon = 1e-9

// MeanPool collapses per-token hidden states into one fixed-length vector
// by averaging them, weighted by the attention mask. states holds one row
// per token; mask marks real tokens with 1 and padding with 0. A nil mask
// treats every token as real. An all-zero mask yields a zero vector rather
// than a division error.
func MeanPool(states [][]float32, mask []float32) []float32 {
	if len(states) == 0 {
		return nil
	}

	dim := len(states[0])
	sums := make([]float64, dim)
	var weight float64

	for i, row := range states {
		m := 1.0
		if mask != nil {
			if i >= len(mask) {
				continue
			}
			m = float64(mask[i])
		}
		if m == 0 {
			continue
		}
		weight += m
		for j := 0; j < dim && j < len(row); j++ {
			sums[j] += float64(row[j]) * m
		}
	}

	if weight < poolEpsilon {
		weight = poolEpsilon
	}
	pooled := make([]float32, dim)
	for j, v := range sums {
		pooled[j] = float32(v / weight)
	}
	return pooled
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths or a zero-norm input yield 0 rather than an error.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
