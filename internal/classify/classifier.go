package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomasrezac/photo-companion/internal/library"
)

// applyConfidenceThreshold is the minimum confidence for a label to be
// written back to the library.
const applyConfidenceThreshold = 0.8

// PhotoWriter is the slice of the library client the classifier needs.
type PhotoWriter interface {
	Download(ctx context.Context, photoUID string) ([]byte, string, error)
	AddPhotoLabel(ctx context.Context, photoUID string, label library.PhotoLabel) (*library.Photo, error)
	EditPhoto(ctx context.Context, photoUID string, updates library.PhotoUpdate) (*library.Photo, error)
}

// Result is the outcome of classifying a single photo.
type Result struct {
	PhotoUID      string
	Labels        []LabelScore
	Categories    []string
	Caption       string
	AppliedLabels int
}

// Classifier runs a vision model over photos and writes labels, a
// caption, and category assignments back to the library.
type Classifier struct {
	provider   Provider
	photos     PhotoWriter
	categories *Categories
}

func NewClassifier(provider Provider, photos PhotoWriter, categories *Categories) *Classifier {
	return &Classifier{
		provider:   provider,
		photos:     photos,
		categories: categories,
	}
}

// ClassifyPhoto downloads and classifies a photo without writing anything back.
func (c *Classifier) ClassifyPhoto(ctx context.Context, photoUID string) (*Result, error) {
	imageData, _, err := c.photos.Download(ctx, photoUID)
	if err != nil {
		return nil, fmt.Errorf("failed to download photo %s: %w", photoUID, err)
	}

	classification, err := c.provider.ClassifyPhoto(ctx, imageData, c.categories.Labels())
	if err != nil {
		return nil, fmt.Errorf("failed to classify photo %s: %w", photoUID, err)
	}

	return c.buildResult(photoUID, classification), nil
}

// ClassifyAndApply classifies a photo and writes confident labels and
// the caption back to the library.
func (c *Classifier) ClassifyAndApply(ctx context.Context, photoUID string) (*Result, error) {
	result, err := c.ClassifyPhoto(ctx, photoUID)
	if err != nil {
		return nil, err
	}

	for _, label := range result.Labels {
		if label.Confidence < applyConfidenceThreshold {
			continue
		}
		// Confidence maps to uncertainty on a 0-100 scale, 0 meaning certain
		uncertainty := int((1 - label.Confidence) * 100)
		_, err := c.photos.AddPhotoLabel(ctx, photoUID, library.PhotoLabel{
			Name:        label.Name,
			LabelSrc:    "manual",
			Uncertainty: uncertainty,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add label %s: %w", label.Name, err)
		}
		result.AppliedLabels++
	}

	if result.Caption != "" {
		captionSrc := "manual"
		_, err := c.photos.EditPhoto(ctx, photoUID, library.PhotoUpdate{
			Caption:    &result.Caption,
			CaptionSrc: &captionSrc,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set caption: %w", err)
		}
	}

	return result, nil
}

func (c *Classifier) buildResult(photoUID string, classification *Classification) *Result {
	result := &Result{
		PhotoUID: photoUID,
		Labels:   classification.Labels,
		Caption:  classification.Caption,
	}

	seen := make(map[string]bool)
	for _, label := range classification.Labels {
		category := c.categories.CategoryFor(label.Name)
		if !seen[category] {
			seen[category] = true
			result.Categories = append(result.Categories, category)
		}
	}
	sort.Strings(result.Categories)

	return result
}
