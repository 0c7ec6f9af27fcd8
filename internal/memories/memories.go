// Package memories resurfaces old photos worth a second look. Candidates
// are photos taken on today's date in past years, ranked by favorite
// status and by how long ago they were last shown.
package memories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/library"
)

const (
	// DefaultLimit is the number of memories surfaced per run.
	DefaultLimit = 10

	favoriteBoost = 0.5
	// neglectWindow is the surfaced-at age at which the neglect score saturates.
	neglectWindow = 365 * 24 * time.Hour
)

// PhotoLister provides the photo metadata the surfacer ranks.
type PhotoLister interface {
	AllPhotos(ctx context.Context) ([]library.Photo, error)
}

// Memory is a photo selected for resurfacing.
type Memory struct {
	Photo        library.Photo
	YearsAgo     int
	Score        float64
	LastSurfaced *time.Time
}

// Surfacer picks on-this-day photos and records which ones were shown.
type Surfacer struct {
	photos PhotoLister
	log    database.SurfaceLog
}

func NewSurfacer(photos PhotoLister, log database.SurfaceLog) *Surfacer {
	return &Surfacer{photos: photos, log: log}
}

// OnThisDay returns up to limit photos taken on now's month and day in
// earlier years, best scored first. The surfaced-at log is read but not
// written; call Surface to record what was actually shown.
func (s *Surfacer) OnThisDay(ctx context.Context, now time.Time, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	photos, err := s.photos.AllPhotos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	var memories []Memory
	for _, photo := range photos {
		taken := photo.TakenAtTime()
		if taken.IsZero() {
			continue
		}
		if taken.Month() != now.Month() || taken.Day() != now.Day() {
			continue
		}
		yearsAgo := now.Year() - taken.Year()
		if yearsAgo < 1 {
			continue
		}

		last, err := s.log.LastSurfaced(ctx, photo.UID)
		if err != nil {
			return nil, fmt.Errorf("failed to read surface log for %s: %w", photo.UID, err)
		}

		memories = append(memories, Memory{
			Photo:        photo,
			YearsAgo:     yearsAgo,
			Score:        score(photo, last, now),
			LastSurfaced: last,
		})
	}

	sort.Slice(memories, func(i, j int) bool {
		if memories[i].Score != memories[j].Score {
			return memories[i].Score > memories[j].Score
		}
		if memories[i].YearsAgo != memories[j].YearsAgo {
			return memories[i].YearsAgo > memories[j].YearsAgo
		}
		return memories[i].Photo.UID < memories[j].Photo.UID
	})

	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

// Surface marks the given memories as shown at now.
func (s *Surfacer) Surface(ctx context.Context, memories []Memory, now time.Time) error {
	for _, m := range memories {
		if err := s.log.MarkSurfaced(ctx, m.Photo.UID, now); err != nil {
			return fmt.Errorf("failed to mark %s surfaced: %w", m.Photo.UID, err)
		}
	}
	return nil
}

// score ranks a candidate. Every candidate starts at 1, favorites get a
// fixed boost, and photos gain up to 1 more the longer they have gone
// without being surfaced. Never-surfaced photos get the full neglect score.
func score(photo library.Photo, lastSurfaced *time.Time, now time.Time) float64 {
	s := 1.0
	if photo.Favorite {
		s += favoriteBoost
	}
	s += neglect(lastSurfaced, now)
	return s
}

func neglect(lastSurfaced *time.Time, now time.Time) float64 {
	if lastSurfaced == nil {
		return 1.0
	}
	age := now.Sub(*lastSurfaced)
	if age <= 0 {
		return 0
	}
	if age >= neglectWindow {
		return 1.0
	}
	return float64(age) / float64(neglectWindow)
}
