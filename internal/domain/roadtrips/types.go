package roadtrips

import (
	"errors"
	"slices"
	"strings"
	"time"

	"roadtrip/internal/domain/users"
)

var (
	ErrNotFound          = errors.New("road trip not found")
	QueryTimeoutDuration = time.Second * 5
)

// DefaultCoverImage is used when a trip has neither a cover nor images.
const DefaultCoverImage = "/default_cover_image.jpg"

type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
	Expert Difficulty = "Expert"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

type Season string

const (
	Spring Season = "Spring"
	Summer Season = "Summer"
	Autumn Season = "Autumn"
	Winter Season = "Winter"
)

type Coordinates struct {
	Latitude  *float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`
}

// Stop is one entry of a trip's ordered route.
type Stop struct {
	LocationName      string       `json:"locationName" bson:"location_name"`
	Description       string       `json:"description,omitempty" bson:"description,omitempty"`
	Coordinates       *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	EstimatedDuration string       `json:"estimatedDuration,omitempty" bson:"estimated_duration,omitempty"`
	Attractions       []string     `json:"attractions,omitempty" bson:"attractions,omitempty"`
}

type Budget struct {
	Min      *float64 `json:"min,omitempty" bson:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" bson:"max,omitempty"`
	Currency string   `json:"currency" bson:"currency"`
}

type RoadTrip struct {
	ID          string     `json:"id" bson:"_id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	CoverImage  string     `json:"coverImage" bson:"cover_image"`
	Images      []string   `json:"images" bson:"images"`
	Route       []Stop     `json:"route" bson:"route"`
	Tags        []string   `json:"tags" bson:"tags"`
	Difficulty  Difficulty `json:"difficulty" bson:"difficulty"`
	Duration    string     `json:"duration" bson:"duration"`
	Season      []Season   `json:"season" bson:"season"`
	Budget      *Budget    `json:"budget,omitempty" bson:"budget,omitempty"`
	CreatedBy   string     `json:"createdBy" bson:"created_by"`
	Likes       []string   `json:"likes" bson:"likes"`
	Saves       []string   `json:"saves" bson:"saves"`
	Views       int64      `json:"views" bson:"views"`
	IsPublic    bool       `json:"isPublic" bson:"is_public"`
	IsFeatured  bool       `json:"isFeatured" bson:"is_featured"`
	Status      Status     `json:"status" bson:"status"`
	CreatedAt   time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updated_at"`

	Author *users.Summary `json:"author,omitempty" bson:"-"`
}

// ListFilter narrows List. Zero value lists every trip.
type ListFilter struct {
	OwnerID    string
	PublicOnly bool
}

// NormalizeTags trims, lowercases and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ApplyDefaults fills unset fields and normalizes tags and currency.
func (t *RoadTrip) ApplyDefaults() {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.CoverImage == "" {
		if len(t.Images) > 0 {
			t.CoverImage = t.Images[0]
		} else {
			t.CoverImage = DefaultCoverImage
		}
	}
	if t.Route == nil {
		t.Route = []Stop{}
	}
	t.Tags = NormalizeTags(t.Tags)
	if t.Difficulty == "" {
		t.Difficulty = Medium
	}
	if t.Season == nil {
		t.Season = []Season{}
	}
	if t.Budget != nil {
		t.Budget.Currency = strings.ToUpper(strings.TrimSpace(t.Budget.Currency))
		if t.Budget.Currency == "" {
			t.Budget.Currency = "USD"
		}
	}
	if t.Status == "" {
		t.Status = StatusPublished
	}
	if t.Likes == nil {
		t.Likes = []string{}
	}
	if t.Saves == nil {
		t.Saves = []string{}
	}
}

// IsListed reports whether the trip shows up for everyone.
func (t *RoadTrip) IsListed() bool {
	return t.IsPublic && t.Status == StatusPublished
}

// VisibleTo reports whether userID may read the trip. An empty userID is an
// anonymous reader.
func (t *RoadTrip) VisibleTo(userID string) bool {
	return t.IsListed() || (userID != "" && t.CreatedBy == userID)
}

func (t *RoadTrip) IsOwner(userID string) bool {
	return userID != "" && t.CreatedBy == userID
}

func (t *RoadTrip) LikedBy(userID string) bool {
	return slices.Contains(t.Likes, userID)
}

func seasonsToStrings(s []Season) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}

func stringsToSeasons(s []string) []Season {
	out := make([]Season, len(s))
	for i, v := range s {
		out[i] = Season(v)
	}
	return out
}
