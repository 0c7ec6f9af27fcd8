package library

import "time"

// Photo represents a PhotoPrism photo
type Photo struct {
	UID          string  `json:"UID"`
	Title        string  `json:"Title"`
	Description  string  `json:"Description"`
	TakenAt      string  `json:"TakenAt"`
	TakenAtLocal string  `json:"TakenAtLocal"`
	Favorite     bool    `json:"Favorite"`
	Private      bool    `json:"Private"`
	Type         string  `json:"Type"`
	Lat          float64 `json:"Lat"`
	Lng          float64 `json:"Lng"`
	Caption      string  `json:"Caption"`
	Year         int     `json:"Year"`
	Month        int     `json:"Month"`
	Day          int     `json:"Day"`
	Country      string  `json:"Country"`
	Hash         string  `json:"Hash"`
	Width        int     `json:"Width"`
	Height       int     `json:"Height"`
	OriginalName string  `json:"OriginalName"`
	FileName     string  `json:"FileName"`
}

// TakenAtTime parses the TakenAt timestamp. Returns the zero time when
// the field is missing or malformed.
func (p *Photo) TakenAtTime() time.Time {
	if p.TakenAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, p.TakenAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// PhotoUpdate represents fields that can be updated on a photo
type PhotoUpdate struct {
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	Favorite    *bool   `json:"Favorite,omitempty"`
	Caption     *string `json:"Caption,omitempty"`
	CaptionSrc  *string `json:"CaptionSrc,omitempty"`
}

// PhotoLabel represents a label/tag that can be added to a photo
type PhotoLabel struct {
	Name        string `json:"Name"`
	LabelSrc    string `json:"LabelSrc,omitempty"`
	Description string `json:"Description,omitempty"`
	Favorite    bool   `json:"Favorite,omitempty"`
	Priority    int    `json:"Priority,omitempty"`
	Uncertainty int    `json:"Uncertainty,omitempty"`
}
