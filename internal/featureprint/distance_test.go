package featureprint

import (
	"errors"
	"math"
	"testing"
)

func vec(values ...float32) *FeatureVector {
	return &FeatureVector{Values: values, Dim: len(values)}
}

func TestDistance_Reflexive(t *testing.T) {
	v := vec(0.3, -0.5, 0.8, 0.1)

	d, err := Distance(v, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d) > 1e-9 {
		t.Errorf("expected distance(v, v) == 0, got %g", d)
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := vec(1, 0, 0.5)
	b := vec(0.2, 0.9, -0.3)

	d1, err := Distance(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d2, err := Distance(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d1 != d2 {
		t.Errorf("expected symmetric distance, got %g vs %g", d1, d2)
	}
}

func TestDistance_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b *FeatureVector
		want float64
	}{
		{"identical", vec(1, 0), vec(1, 0), 0},
		{"orthogonal", vec(1, 0), vec(0, 1), 1},
		{"opposite", vec(1, 0), vec(-1, 0), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Distance(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected distance %g, got %g", tt.want, got)
			}
		})
	}
}

func TestDistance_IncompatibleVectors(t *testing.T) {
	tests := []struct {
		name string
		a, b *FeatureVector
	}{
		{"nil first", nil, vec(1, 0)},
		{"nil second", vec(1, 0), nil},
		{"empty", vec(), vec(1, 0)},
		{"dimension mismatch", vec(1, 0), vec(1, 0, 0)},
		{"zero vector", vec(0, 0), vec(1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Distance(tt.a, tt.b)
			if !errors.Is(err, ErrIncompatibleVectors) {
				t.Errorf("expected ErrIncompatibleVectors, got %v", err)
			}
		})
	}
}

func TestIsDuplicate_Threshold(t *testing.T) {
	a := vec(1, 0)
	b := vec(1, 0.1) // small angle, distance well under 0.5
	c := vec(0, 1)   // orthogonal, distance 1

	dup, err := IsDuplicate(a, b, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dup {
		t.Error("expected near-identical vectors to be duplicates at threshold 0.5")
	}

	dup, err = IsDuplicate(a, c, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Error("expected orthogonal vectors to not be duplicates at threshold 0.5")
	}
}

func TestIsDuplicate_Monotonic(t *testing.T) {
	a := vec(1, 0.4)
	b := vec(1, 0)

	d, err := Distance(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Raising the threshold never turns a duplicate pair into a non-duplicate.
	wasDup := false
	for _, threshold := range []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8} {
		dup, err := IsDuplicate(a, b, threshold)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if wasDup && !dup {
			t.Errorf("pair flipped from duplicate to non-duplicate when raising threshold to %.1f (distance %g)", threshold, d)
		}
		if dup {
			wasDup = true
		}
	}
}
