// Package featureprint turns photo pixels into fixed-format feature vectors
// and compares them. The underlying vision model is opaque: this package only
// knows how to obtain a vector for an image and how to measure the distance
// between two vectors produced by the same extractor configuration.
package featureprint

import (
	"errors"
	"fmt"
)

// ErrExtractionFailed indicates the model could not produce a feature vector
// for an otherwise readable image (corrupt content, unsupported format).
var ErrExtractionFailed = errors.New("feature extraction failed")

// ErrIncompatibleVectors indicates two vectors cannot be compared because they
// come from different extractor configurations (mismatched dimensions) or one
// of them is empty. This is a data-integrity condition, not a user error.
var ErrIncompatibleVectors = errors.New("incompatible feature vectors")

// ImageLoadError indicates the pixel data for an asset could not be obtained
// or decoded at all.
type ImageLoadError struct {
	Reason string
	Err    error
}

func (e *ImageLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image load failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("image load failed: %s", e.Reason)
}

func (e *ImageLoadError) Unwrap() error {
	return e.Err
}

// FeatureVector is a fixed-format numeric descriptor of one photo's visual
// content. Dim is recorded separately so extraction success can be validated
// and mismatched extractor configurations rejected at comparison time.
type FeatureVector struct {
	Values []float32
	Dim    int
}

// NewFeatureVector wraps raw model output, rejecting empty vectors.
func NewFeatureVector(values []float32) (*FeatureVector, error) {
	if len(values) == 0 {
		return nil, ErrExtractionFailed
	}
	return &FeatureVector{Values: values, Dim: len(values)}, nil
}
