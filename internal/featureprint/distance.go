package featureprint

import "math"

// Distance computes the cosine distance between two feature vectors.
// Returns a value between 0 (identical) and 2 (opposite); smaller means more
// similar. Distance is symmetric and Distance(v, v) == 0.
// Returns ErrIncompatibleVectors for empty vectors or mismatched dimensions.
func Distance(a, b *FeatureVector) (float64, error) {
	if a == nil || b == nil || len(a.Values) == 0 || len(b.Values) == 0 {
		return 0, ErrIncompatibleVectors
	}
	if a.Dim != b.Dim || len(a.Values) != len(b.Values) {
		return 0, ErrIncompatibleVectors
	}

	var dotProduct, normA, normB float64
	for i := range a.Values {
		dotProduct += float64(a.Values[i]) * float64(b.Values[i])
		normA += float64(a.Values[i]) * float64(a.Values[i])
		normB += float64(b.Values[i]) * float64(b.Values[i])
	}

	if normA == 0 || normB == 0 {
		return 0, ErrIncompatibleVectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity, nil
}

// IsDuplicate reports whether two vectors are within the duplicate threshold.
// The threshold is a maximum cosine distance: lower values are stricter.
func IsDuplicate(a, b *FeatureVector, threshold float64) (bool, error) {
	d, err := Distance(a, b)
	if err != nil {
		return false, err
	}
	return d < threshold, nil
}
