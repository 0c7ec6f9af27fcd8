// Package classify assigns content labels and captions to photos using
// vision language models, and maps labels onto the configured category
// tree for browsing.
package classify

import "context"

// Provider defines the interface for vision classification backends.
type Provider interface {
	Name() string
	ClassifyPhoto(ctx context.Context, imageData []byte, candidateLabels []string) (*Classification, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

// Classification contains the model's reading of a photo.
type Classification struct {
	// Labels with confidence scores.
	Labels []LabelScore `json:"labels"`
	// Caption is a one-sentence description of the photo.
	Caption string `json:"caption"`
}

// LabelScore represents a label with its confidence score.
type LabelScore struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // 0-1, only labels above the apply threshold are written back
}
