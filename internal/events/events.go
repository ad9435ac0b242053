// Package events publishes domain events for other services to consume.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectTripCreated    = "roadtrip.created"
	SubjectTripLiked      = "roadtrip.liked"
	SubjectCommentCreated = "comment.created"
	SubjectReviewCreated  = "review.created"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

type TripCreated struct {
	TripID    string    `json:"trip_id"`
	Title     string    `json:"title"`
	AuthorID  string    `json:"author_id"`
	IsPublic  bool      `json:"is_public"`
	Timestamp time.Time `json:"timestamp"`
}

type TripLiked struct {
	TripID    string    `json:"trip_id"`
	UserID    string    `json:"user_id"`
	Liked     bool      `json:"liked"`
	Likes     int       `json:"likes"`
	Timestamp time.Time `json:"timestamp"`
}

type CommentCreated struct {
	CommentID string    `json:"comment_id"`
	TripID    string    `json:"trip_id"`
	AuthorID  string    `json:"author_id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ReviewCreated struct {
	ReviewID  string    `json:"review_id"`
	TripID    string    `json:"trip_id"`
	AuthorID  string    `json:"author_id"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NATS struct {
	nc conn
}

func NewNATS(url string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("roadtrip-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATS{nc: nc}, nil
}

func (n *NATS) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	return n.nc.Publish(subject, data)
}

// Close flushes pending messages before closing the connection.
func (n *NATS) Close() {
	_ = n.nc.Drain()
}

type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close()                                     {}
