package model

import "time"

// MediaType tags an item in a project's media gallery.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	return t == MediaImage || t == MediaVideo
}

// Project is a titled collection of media, timeline entries, tools and
// outcomes owned by exactly one user.
//
// UserID is set from the authenticated creator and never changes. Slug is
// derived from Title by the service layer and is unique across projects.
type Project struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user"`
	Title        string           `json:"title"`
	Slug         string           `json:"slug"`
	Overview     string           `json:"overview"`
	MediaGallery []MediaItem      `json:"mediaGallery"`
	Timeline     []TimelineEntry  `json:"timeline"`
	Tools        []Tool           `json:"tools"`
	Outcomes     Outcomes         `json:"outcomes"`
	Analytics    ProjectAnalytics `json:"analytics"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type MediaItem struct {
	Type     MediaType `json:"type"`
	URL      string    `json:"url"`
	Caption  string    `json:"caption,omitempty"`
	PublicID string    `json:"publicId,omitempty"`
}

type TimelineEntry struct {
	Date        Date   `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Tool struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type Outcomes struct {
	Metrics      []Metric      `json:"metrics"`
	Testimonials []Testimonial `json:"testimonials"`
}

type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Testimonial struct {
	Content string `json:"content"`
	Author  string `json:"author"`
	Role    string `json:"role"`
}

// ProjectAnalytics holds the two public counters of a project.
// Both only ever increase.
type ProjectAnalytics struct {
	Views      int64 `json:"views"`
	Engagement int64 `json:"engagement"`
}

// Creator is the owner metadata returned alongside a publicly viewed project.
type Creator = PublicProfile

// PublicProject is a project as served to anonymous visitors.
type PublicProject struct {
	Project
	Creator *Creator `json:"creator,omitempty"`
}

// Normalize replaces nil slices with empty ones so the JSON shape is stable
// regardless of which backend produced the record.
func (p *Project) Normalize() {
	if p.MediaGallery == nil {
		p.MediaGallery = []MediaItem{}
	}
	if p.Timeline == nil {
		p.Timeline = []TimelineEntry{}
	}
	if p.Tools == nil {
		p.Tools = []Tool{}
	}
	if p.Outcomes.Metrics == nil {
		p.Outcomes.Metrics = []Metric{}
	}
	if p.Outcomes.Testimonials == nil {
		p.Outcomes.Testimonials = []Testimonial{}
	}
}
