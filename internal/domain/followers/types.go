package followers

import (
	"errors"
	"time"
)

var (
	ErrConflict          = errors.New("already following this user")
	ErrNotFollowing      = errors.New("not following this user")
	ErrSelfFollow        = errors.New("cannot follow yourself")
	QueryTimeoutDuration = time.Second * 5
)

// Follow is one edge of the follow graph: FollowerID follows UserID.
type Follow struct {
	FollowerID string    `json:"followerId" bson:"follower_id"`
	UserID     string    `json:"userId" bson:"user_id"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}
