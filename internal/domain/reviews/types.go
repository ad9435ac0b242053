package reviews

import (
	"errors"
	"math"
	"time"

	"roadtrip/internal/domain/users"
)

var (
	ErrNotFound          = errors.New("review not found")
	ErrDuplicateReview   = errors.New("you have already reviewed this trip")
	QueryTimeoutDuration = time.Second * 5
)

type TravelType string

const (
	Solo     TravelType = "Solo"
	Couple   TravelType = "Couple"
	Family   TravelType = "Family"
	Friends  TravelType = "Friends"
	Business TravelType = "Business"
)

type Review struct {
	ID         string     `json:"id" bson:"_id"`
	Comment    string     `json:"comment" bson:"comment"`
	Rating     int        `json:"rating" bson:"rating"`
	UserID     string     `json:"user" bson:"user"`
	TripID     string     `json:"roadTrip" bson:"road_trip"`
	Helpful    []string   `json:"helpful" bson:"helpful"`
	Images     []string   `json:"images" bson:"images"`
	TripDate   *time.Time `json:"tripDate,omitempty" bson:"trip_date,omitempty"`
	TravelType TravelType `json:"travelType" bson:"travel_type"`
	Verified   bool       `json:"verified" bson:"verified"`
	IsEdited   bool       `json:"isEdited" bson:"is_edited"`
	EditedAt   *time.Time `json:"editedAt,omitempty" bson:"edited_at,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" bson:"updated_at"`

	Author *users.Summary `json:"author,omitempty" bson:"-"`
}

// Stats summarises the reviews of one trip.
type Stats struct {
	AverageRating float64 `json:"averageRating"`
	TotalReviews  int     `json:"totalReviews"`
}

// NewStats rounds the average to one decimal.
func NewStats(average float64, total int) Stats {
	if total == 0 {
		return Stats{}
	}
	return Stats{AverageRating: math.Round(average*10) / 10, TotalReviews: total}
}

func (r *Review) IsOwner(userID string) bool {
	return userID != "" && r.UserID == userID
}

// Edit applies new values and flags the review as edited when the comment or
// rating changed.
func (r *Review) Edit(comment string, rating int, now time.Time) {
	if comment != r.Comment || rating != r.Rating {
		r.IsEdited = true
		r.EditedAt = &now
	}
	r.Comment = comment
	r.Rating = rating
}

func (r *Review) applyDefaults() {
	if r.TravelType == "" {
		r.TravelType = Solo
	}
	if r.Helpful == nil {
		r.Helpful = []string{}
	}
	if r.Images == nil {
		r.Images = []string{}
	}
}
