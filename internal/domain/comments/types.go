package comments

import (
	"errors"
	"time"

	"roadtrip/internal/domain/users"
)

var (
	ErrNotFound          = errors.New("comment not found")
	QueryTimeoutDuration = time.Second * 5
)

type Comment struct {
	ID        string     `json:"id" bson:"_id"`
	Text      string     `json:"text" bson:"text"`
	UserID    string     `json:"user" bson:"user"`
	TripID    string     `json:"roadTrip" bson:"road_trip"`
	ParentID  *string    `json:"parentComment" bson:"parent_comment"`
	Replies   []string   `json:"replies" bson:"-"`
	Likes     []string   `json:"likes" bson:"likes"`
	IsEdited  bool       `json:"isEdited" bson:"is_edited"`
	EditedAt  *time.Time `json:"editedAt,omitempty" bson:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updated_at"`

	Author *users.Summary `json:"author,omitempty" bson:"-"`
}

func (c *Comment) IsOwner(userID string) bool {
	return userID != "" && c.UserID == userID
}
