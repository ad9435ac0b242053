package followers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"roadtrip/internal/db"
)

type Store interface {
	Follow(ctx context.Context, followerID, userID string) error
	Unfollow(ctx context.Context, followerID, userID string) error
	// Followers lists the IDs of users following userID.
	Followers(ctx context.Context, userID string) ([]string, error)
	// Following lists the IDs of users that userID follows.
	Following(ctx context.Context, userID string) ([]string, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Store {
	return &Repository{db: q}
}

func (r *Repository) Follow(ctx context.Context, followerID, userID string) error {
	if followerID == userID {
		return ErrSelfFollow
	}

	query := `
           INSERT INTO follows (follower_id, user_id) VALUES ($1, $2)
   `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, query, followerID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to follow user: %w", err)
	}
	return nil
}

func (r *Repository) Unfollow(ctx context.Context, followerID, userID string) error {
	query := `
	   DELETE FROM follows
	   WHERE follower_id = $1 AND user_id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, followerID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFollowing
	}
	return nil
}

func (r *Repository) Followers(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, `SELECT follower_id FROM follows WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (r *Repository) Following(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, `SELECT user_id FROM follows WHERE follower_id = $1 ORDER BY created_at`, userID)
}

func (r *Repository) ids(ctx context.Context, query, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 OR user_id = $1`, userID)
	return err
}
